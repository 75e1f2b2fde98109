package tiling

import (
	"image/color"
	"math"
	"testing"
)

func TestNormalize_ShapeAndDtype(t *testing.T) {
	src := solidImage(448, 448, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	ts := Normalize(src, 448)
	if ts.Channels != 3 || ts.Edge != 448 {
		t.Fatalf("bad tensor shape: %+v", ts)
	}
	if len(ts.Data) != 3*448*448 {
		t.Fatalf("bad tensor length %d", len(ts.Data))
	}
}

func TestNormalize_RoundTripSolidColor(t *testing.T) {
	want := [3]float32{200.0 / 255, 100.0 / 255, 50.0 / 255}
	src := solidImage(64, 64, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	ts := Normalize(src, 64)
	plane := 64 * 64
	for c := 0; c < 3; c++ {
		var sum float64
		for i := 0; i < plane; i++ {
			sum += float64(Denormalize(ts.Data[c*plane+i], c))
		}
		got := float32(sum / float64(plane))
		if math.Abs(float64(got-want[c])) > 1e-3 {
			t.Fatalf("channel %d: denormalized mean %f, want %f", c, got, want[c])
		}
	}
}

func TestNormalize_ResamplesToEdge(t *testing.T) {
	src := solidImage(10, 17, color.RGBA{R: 30, G: 30, B: 30, A: 255})
	ts := Normalize(src, 8)
	if ts.Edge != 8 || len(ts.Data) != 3*8*8 {
		t.Fatalf("resample to edge failed: %+v", ts)
	}
}

func TestStack_OrderPreserving(t *testing.T) {
	a := Normalize(solidImage(4, 4, color.RGBA{R: 255, A: 255}), 4)
	b := Normalize(solidImage(4, 4, color.RGBA{G: 255, A: 255}), 4)

	batch := Stack([]Tensor{a, b})
	if batch.N != 2 || batch.Channels != 3 || batch.Edge != 4 {
		t.Fatalf("bad batch shape: %+v", batch)
	}
	per := 3 * 4 * 4
	if len(batch.Data) != 2*per {
		t.Fatalf("bad batch length %d", len(batch.Data))
	}
	// first block is the red tile's R channel, second block the green tile's
	if batch.Data[0] != a.Data[0] || batch.Data[per] != b.Data[0] {
		t.Fatalf("stack reordered tensors")
	}
}

func TestStack_Empty(t *testing.T) {
	if got := Stack(nil); got.N != 0 || got.Data != nil {
		t.Fatalf("empty stack should be zero batch, got %+v", got)
	}
}

func TestBFloat16_KnownBits(t *testing.T) {
	cases := []struct {
		in   float32
		want uint16
	}{
		{0, 0x0000},
		{1, 0x3f80},
		{-1, 0xbf80},
		{3, 0x4040},
		{-2.5, 0xc020},
	}
	for _, tc := range cases {
		if got := bf16bits(tc.in); got != tc.want {
			t.Fatalf("bf16(%f) = %#04x, want %#04x", tc.in, got, tc.want)
		}
	}
}

func TestBFloat16_RoundsToNearestEven(t *testing.T) {
	// 1 + 2^-9 sits exactly between bf16 neighbors; even mantissa wins
	in := math.Float32frombits(0x3f808000)
	if got := bf16bits(in); got != 0x3f80 {
		t.Fatalf("halfway case should round to even: got %#04x", got)
	}
	// nudge above halfway rounds up
	in = math.Float32frombits(0x3f808001)
	if got := bf16bits(in); got != 0x3f81 {
		t.Fatalf("above halfway should round up: got %#04x", got)
	}
}

func TestBFloat16_NaNStaysNaN(t *testing.T) {
	got := bf16bits(float32(math.NaN()))
	if got&0x7f80 != 0x7f80 || got&0x007f == 0 {
		t.Fatalf("NaN lost in conversion: %#04x", got)
	}
}

func TestBatchBFloat16_Length(t *testing.T) {
	a := Normalize(solidImage(4, 4, color.RGBA{R: 9, G: 9, B: 9, A: 255}), 4)
	batch := Stack([]Tensor{a})
	if got := batch.BFloat16(); len(got) != len(batch.Data) {
		t.Fatalf("bf16 length %d != %d", len(got), len(batch.Data))
	}
}
