// Package tiling implements the adaptive tile-grid preprocessor that turns an
// arbitrary-aspect image into a batch of fixed-size square tiles for the model
package tiling

import (
	"math"
	"sort"

	perr "lumen/internal/platform/errors"
)

// Config controls grid planning and tile geometry
type Config struct {
	// MinTiles and MaxTiles bound cols*rows for candidate grids (inclusive)
	MinTiles int
	MaxTiles int
	// TileEdge is the square tile side in pixels
	TileEdge int
	// Thumbnail appends a whole-image tile when the grid has more than one tile
	Thumbnail bool
}

// DefaultConfig mirrors the constants the model was trained against
func DefaultConfig() Config {
	return Config{MinTiles: 1, MaxTiles: 12, TileEdge: 448, Thumbnail: true}
}

// Grid is a candidate tile layout, cols x rows
type Grid struct {
	Cols int
	Rows int
}

// Tiles returns the grid's tile count
func (g Grid) Tiles() int { return g.Cols * g.Rows }

// Aspect returns cols/rows as the grid's target aspect ratio
func (g Grid) Aspect() float64 { return float64(g.Cols) / float64(g.Rows) }

// Plan is the chosen grid plus derived resize target for one image
type Plan struct {
	Grid Grid
	// Width and Height are the stretch-resize target in pixels
	// (Grid dims x TileEdge, so they divide evenly into tiles)
	Width  int
	Height int
	// Tiles is the grid tile count, excluding any thumbnail
	Tiles int
}

// Candidates enumerates every grid with min <= cols*rows <= max, sorted
// ascending by tile count (cols ascending within equal counts). The set is
// deterministic for a given range; callers may cache it per config
func Candidates(min, max int) []Grid {
	if min < 1 {
		min = 1
	}
	var out []Grid
	for cols := 1; cols <= max; cols++ {
		for rows := 1; rows <= max; rows++ {
			n := cols * rows
			if n >= min && n <= max {
				out = append(out, Grid{Cols: cols, Rows: rows})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tiles() != out[j].Tiles() {
			return out[i].Tiles() < out[j].Tiles()
		}
		return out[i].Cols < out[j].Cols
	})
	return out
}

// PlanFor picks the grid whose aspect ratio is closest to the image's and
// derives the resize target. Ties on the aspect difference keep the legacy
// rule: a later candidate wins when its pixel area exceeds half the source
// area. Preserved exactly for output stability; do not "fix" the tie-break
func PlanFor(w, h int, cfg Config) (Plan, error) {
	if w <= 0 || h <= 0 {
		return Plan{}, perr.InvalidArgf("invalid image dimensions %dx%d", w, h)
	}

	imageAspect := float64(w) / float64(h)
	best := Grid{Cols: 1, Rows: 1}
	bestDiff := math.Inf(1)

	for _, g := range Candidates(cfg.MinTiles, cfg.MaxTiles) {
		diff := math.Abs(imageAspect - g.Aspect())
		switch {
		case diff < bestDiff:
			bestDiff = diff
			best = g
		case diff == bestDiff:
			if float64(g.Tiles()*cfg.TileEdge*cfg.TileEdge) > float64(w)*float64(h)/2 {
				best = g
			}
		}
	}

	return Plan{
		Grid:   best,
		Width:  best.Cols * cfg.TileEdge,
		Height: best.Rows * cfg.TileEdge,
		Tiles:  best.Tiles(),
	}, nil
}
