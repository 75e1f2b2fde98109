package tiling

import (
	"image"
	"math"
)

// Normalization constants, standard natural-image statistics
var (
	meanRGB = [3]float32{0.485, 0.456, 0.406}
	stdRGB  = [3]float32{0.229, 0.224, 0.225}
)

// Tensor is one normalized tile in CHW order
type Tensor struct {
	Data     []float32
	Channels int
	Edge     int
}

// Batch stacks tensors along a new leading axis, preserving tile order
type Batch struct {
	Data     []float32
	N        int
	Channels int
	Edge     int
}

// Normalize converts one tile into a CHW float tensor: 3-channel color,
// bicubic resample to edge when needed, intensities scaled to [0,1], then
// per-channel mean/std normalization. Order matters and matches what the
// model weights expect
func Normalize(tile image.Image, edge int) Tensor {
	b := tile.Bounds()
	src := tile
	if b.Dx() != edge || b.Dy() != edge {
		src = Resize(tile, edge, edge)
		b = src.Bounds()
	}

	plane := edge * edge
	data := make([]float32, 3*plane)
	for y := 0; y < edge; y++ {
		for x := 0; x < edge; x++ {
			// RGBA() also flattens non-RGB encodings into 3 usable channels
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*edge + x
			data[0*plane+i] = (float32(r)/65535 - meanRGB[0]) / stdRGB[0]
			data[1*plane+i] = (float32(g)/65535 - meanRGB[1]) / stdRGB[1]
			data[2*plane+i] = (float32(bl)/65535 - meanRGB[2]) / stdRGB[2]
		}
	}
	return Tensor{Data: data, Channels: 3, Edge: edge}
}

// Denormalize undoes the mean/std step for channel c, returning the [0,1]
// intensity. Used by round-trip checks
func Denormalize(v float32, c int) float32 {
	return v*stdRGB[c] + meanRGB[c]
}

// NormalizeAll maps Normalize over tiles, order-preserving
func NormalizeAll(tiles []*image.RGBA, edge int) []Tensor {
	out := make([]Tensor, 0, len(tiles))
	for _, t := range tiles {
		out = append(out, Normalize(t, edge))
	}
	return out
}

// Stack joins tensors into one batch array in input order
func Stack(ts []Tensor) Batch {
	if len(ts) == 0 {
		return Batch{}
	}
	edge := ts[0].Edge
	ch := ts[0].Channels
	data := make([]float32, 0, len(ts)*ch*edge*edge)
	for _, t := range ts {
		data = append(data, t.Data...)
	}
	return Batch{Data: data, N: len(ts), Channels: ch, Edge: edge}
}

// BFloat16 encodes the batch as bfloat16 bits (round to nearest even),
// the reduced-precision dtype the inference runtime consumes
func (b Batch) BFloat16() []uint16 {
	out := make([]uint16, len(b.Data))
	for i, f := range b.Data {
		out[i] = bf16bits(f)
	}
	return out
}

func bf16bits(f float32) uint16 {
	u := math.Float32bits(f)
	if f != f { // NaN: keep it quiet, keep it NaN
		return uint16(u>>16) | 0x0040
	}
	u += 0x7fff + ((u >> 16) & 1)
	return uint16(u >> 16)
}
