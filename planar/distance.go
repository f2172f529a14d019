/*
Copyright © 2024 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.*/

package planar

import (
	"math"

	"github.com/ctessum/geom"
)

// Distance returns the minimum Euclidean distance between a and b,
// which is zero if they intersect. It returns NaN if either geometry
// is empty.
func Distance(a, b geom.Geom) (float64, error) {
	pa, err := decompose(a)
	if err != nil {
		return math.NaN(), err
	}
	pb, err := decompose(b)
	if err != nil {
		return math.NaN(), err
	}
	if pa.empty() || pb.empty() {
		return math.NaN(), nil
	}
	if intersects(pa, pb) {
		return 0, nil
	}
	d := math.Inf(1)
	sa, sb := pa.allSegments(), pb.allSegments()
	for _, p := range pa.points {
		for _, q := range pb.points {
			d = math.Min(d, pointDistance(p, q))
		}
		for _, s := range sb {
			d = math.Min(d, pointSegmentDistance(p, s.a, s.b))
		}
	}
	for _, q := range pb.points {
		for _, s := range sa {
			d = math.Min(d, pointSegmentDistance(q, s.a, s.b))
		}
	}
	for _, s := range sa {
		for _, t := range sb {
			d = math.Min(d, SegmentDistance(s.a, s.b, t.a, t.b))
		}
	}
	return d, nil
}

func pointDistance(p, q geom.Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// closestOnSegment returns the point on segment ab closest to p.
func closestOnSegment(p, a, b geom.Point) geom.Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	return geom.Point{X: a.X + t*dx, Y: a.Y + t*dy}
}

func pointSegmentDistance(p, a, b geom.Point) float64 {
	return pointDistance(p, closestOnSegment(p, a, b))
}

// SegmentDistance returns the minimum Euclidean distance between the
// segment from a0 to a1 and the segment from b0 to b1. Either segment
// may have zero length.
func SegmentDistance(a0, a1, b0, b1 geom.Point) float64 {
	if segmentsIntersect(segment{a0, a1}, segment{b0, b1}) {
		return 0
	}
	return math.Min(
		math.Min(pointSegmentDistance(a0, b0, b1), pointSegmentDistance(a1, b0, b1)),
		math.Min(pointSegmentDistance(b0, a0, a1), pointSegmentDistance(b1, a0, a1)),
	)
}

// Closest describes the result of a closest point search.
type Closest int

const (
	// Indeterminate means no single closest point exists, for
	// example because the geometry is empty.
	Indeterminate Closest = iota
	// Intersection means the search point lies on the geometry.
	Intersection
	// SinglePoint means the closest point is unique and is not the
	// search point.
	SinglePoint
)

func (c Closest) String() string {
	switch c {
	case Intersection:
		return "Intersection"
	case SinglePoint:
		return "SinglePoint"
	}
	return "Indeterminate"
}

// ClosestPoint returns the point of g nearest to p. Points inside a
// polygon are their own closest point. When two or more distinct points
// of g are equally near, the result is Indeterminate.
func ClosestPoint(g geom.Geom, p geom.Point) (geom.Point, Closest, error) {
	pg, err := decompose(g)
	if err != nil {
		return geom.Point{}, Indeterminate, err
	}
	if pg.empty() || math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return geom.Point{}, Indeterminate, nil
	}
	if intersects(pg, &parts{points: []geom.Point{p}}) {
		return p, Intersection, nil
	}
	var best geom.Point
	bestD := math.Inf(1)
	tie := false
	consider := func(q geom.Point) {
		d := pointDistance(p, q)
		switch {
		case d < bestD:
			best, bestD, tie = q, d, false
		case d == bestD && q != best:
			tie = true
		}
	}
	for _, q := range pg.points {
		consider(q)
	}
	for _, s := range pg.allSegments() {
		consider(closestOnSegment(p, s.a, s.b))
	}
	if tie || math.IsInf(bestD, 1) {
		return geom.Point{}, Indeterminate, nil
	}
	return best, SinglePoint, nil
}
