// Package models defines core data structures for scenes, detections, text units, and relationships.
package models

import "math"

// Rect is an axis-aligned box [x1, y1, x2, y2] in image pixels.
type Rect [4]float64

// NewRect returns the box with corners (x1, y1) and (x2, y2).
func NewRect(x1, y1, x2, y2 float64) Rect {
	return Rect{x1, y1, x2, y2}
}

// Width returns x2-x1, clamped to zero.
func (r Rect) Width() float64 {
	return math.Max(0, r[2]-r[0])
}

// Height returns y2-y1, clamped to zero.
func (r Rect) Height() float64 {
	return math.Max(0, r[3]-r[1])
}

// Area returns the box area. Degenerate boxes have zero area.
func (r Rect) Area() float64 {
	return r.Width() * r.Height()
}

// Intersection returns the overlap of r and o. ok is false when the boxes are disjoint;
// boxes that only touch along an edge intersect with zero area.
func (r Rect) Intersection(o Rect) (Rect, bool) {
	x1 := math.Max(r[0], o[0])
	y1 := math.Max(r[1], o[1])
	x2 := math.Min(r[2], o[2])
	y2 := math.Min(r[3], o[3])
	if x2 < x1 || y2 < y1 {
		return Rect{}, false
	}
	return Rect{x1, y1, x2, y2}, true
}

// Union returns the smallest box containing both r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		math.Min(r[0], o[0]),
		math.Min(r[1], o[1]),
		math.Max(r[2], o[2]),
		math.Max(r[3], o[3]),
	}
}

// IoU returns intersection-over-union of r and o (0 when disjoint or both empty).
func (r Rect) IoU(o Rect) float64 {
	inter, ok := r.Intersection(o)
	if !ok {
		return 0
	}
	ia := inter.Area()
	union := r.Area() + o.Area() - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

// Containment returns the fraction of r's own area covered by o.
func (r Rect) Containment(o Rect) float64 {
	area := r.Area()
	if area <= 0 {
		return 0
	}
	inter, ok := r.Intersection(o)
	if !ok {
		return 0
	}
	return inter.Area() / area
}
