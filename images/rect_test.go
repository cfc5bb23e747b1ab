package images

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRectIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want float32
	}{
		{
			name: "identical",
			a:    Rect{0, 0, 10, 10},
			b:    Rect{0, 0, 10, 10},
			want: 1,
		},
		{
			name: "disjoint",
			a:    Rect{0, 0, 10, 10},
			b:    Rect{20, 20, 30, 30},
			want: 0,
		},
		{
			name: "half_overlap",
			a:    Rect{0, 0, 10, 10},
			b:    Rect{5, 0, 15, 10},
			want: 50.0 / 150.0,
		},
		{
			name: "degenerate",
			a:    Rect{5, 5, 5, 5},
			b:    Rect{0, 0, 10, 10},
			want: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, tc.a.IoU(tc.b), 1e-6)
		})
	}
}

func TestRectClamp(t *testing.T) {
	r := Rect{-5, -5, 700, 500}.Clamp(640, 480)
	require.Equal(t, Rect{0, 0, 640, 480}, r)
}
