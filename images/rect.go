// Package images - geometry helpers shared by detection postprocessing and
// annotation.
package images

import "github.com/chewxy/math32"

// Rect is a lightweight bounding box in absolute pixel coordinates.
// X2,Y2 are exclusive, like image.Rectangle.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Area returns the box area, zero for degenerate boxes.
func (r Rect) Area() float32 {
	w := r.X2 - r.X1
	h := r.Y2 - r.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Intersection returns the overlapping area between two boxes.
func (r Rect) Intersection(o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	return (ix2 - ix1) * (iy2 - iy1)
}

// IoU computes intersection over union. The union of two degenerate boxes
// is zero, in which case IoU is defined as zero to avoid dividing by it.
func (r Rect) IoU(o Rect) float32 {
	inter := r.Intersection(o)
	if inter == 0 {
		return 0
	}
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Clamp restricts the box to the [0,w]x[0,h] extent of an image.
func (r Rect) Clamp(w, h float32) Rect {
	return Rect{
		X1: math32.Min(math32.Max(r.X1, 0), w),
		Y1: math32.Min(math32.Max(r.Y1, 0), h),
		X2: math32.Min(math32.Max(r.X2, 0), w),
		Y2: math32.Min(math32.Max(r.Y2, 0), h),
	}
}
