package tiling

import (
	"fmt"
	"image"
	stddraw "image/draw"

	xdraw "golang.org/x/image/draw"
)

// Resize stretch-resizes src to w x h with the bicubic kernel.
// Aspect is NOT preserved; the planner already matched the grid to it
func Resize(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// Split resizes src to the plan target and cuts it row-major into TileEdge
// squares. When thumbnailing is on and the grid yields more than one tile,
// one extra tile resized from the ORIGINAL image is appended last.
//
// A tile count that disagrees with the plan is a planner defect, not input
// trouble, and panics rather than surfacing as a per-item error
func Split(src image.Image, plan Plan, cfg Config) []*image.RGBA {
	edge := cfg.TileEdge
	cols := plan.Width / edge
	rows := plan.Height / edge
	if cols*rows != plan.Tiles {
		panic(fmt.Sprintf("tiling: plan inconsistent: %dx%d grid vs %d tiles", cols, rows, plan.Tiles))
	}

	resized := Resize(src, plan.Width, plan.Height)

	tiles := make([]*image.RGBA, 0, plan.Tiles+1)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			r := image.Rect(col*edge, row*edge, (col+1)*edge, (row+1)*edge)
			// copy out of the shared backing array so each tile owns its pixels
			t := image.NewRGBA(image.Rect(0, 0, edge, edge))
			stddraw.Draw(t, t.Bounds(), resized.SubImage(r), r.Min, stddraw.Src)
			tiles = append(tiles, t)
		}
	}

	if cfg.Thumbnail && plan.Tiles > 1 {
		tiles = append(tiles, Resize(src, edge, edge))
	}

	want := plan.Tiles
	if cfg.Thumbnail && plan.Tiles > 1 {
		want++
	}
	if len(tiles) != want {
		panic(fmt.Sprintf("tiling: produced %d tiles, plan wants %d", len(tiles), want))
	}
	return tiles
}
