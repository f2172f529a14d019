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
	"sort"

	"github.com/ctessum/geom"
)

// pointStatus returns whether pt is inside, outside, or on the edge of
// the union of polys.
func pointStatus(pt geom.Point, polys []geom.Polygon) geom.WithinStatus {
	status := geom.Outside
outer:
	for _, pg := range polys {
		for _, s := range polygonSegments(pg) {
			if onSegment(pt, s) {
				status = geom.OnEdge
				continue outer
			}
		}
		if pt.Within(pg) == geom.Inside {
			return geom.Inside
		}
	}
	return status
}

// Intersects returns whether a and b share at least one point.
func Intersects(a, b geom.Geom) (bool, error) {
	pa, err := decompose(a)
	if err != nil {
		return false, err
	}
	pb, err := decompose(b)
	if err != nil {
		return false, err
	}
	return intersects(pa, pb), nil
}

func intersects(a, b *parts) bool {
	if a.empty() || b.empty() {
		return false
	}
	sa, sb := a.allSegments(), b.allSegments()
	for _, p := range a.points {
		for _, q := range b.points {
			if p == q {
				return true
			}
		}
		for _, s := range sb {
			if onSegment(p, s) {
				return true
			}
		}
	}
	for _, q := range b.points {
		for _, s := range sa {
			if onSegment(q, s) {
				return true
			}
		}
	}
	for _, s := range sa {
		for _, t := range sb {
			if segmentsIntersect(s, t) {
				return true
			}
		}
	}
	// Components lying entirely inside a polygon of the other geometry.
	if len(b.polys) > 0 {
		for _, p := range a.representatives() {
			if pointStatus(p, b.polys) != geom.Outside {
				return true
			}
		}
	}
	if len(a.polys) > 0 {
		for _, p := range b.representatives() {
			if pointStatus(p, a.polys) != geom.Outside {
				return true
			}
		}
	}
	return false
}

// Contains returns whether a contains b: no point of b lies in the exterior
// of a, and at least one point of the interior of b lies in the interior
// of a.
func Contains(a, b geom.Geom) (bool, error) {
	return Within(b, a)
}

// Within returns whether a is within b: no point of a lies in the exterior
// of b, and at least one point of the interior of a lies in the interior
// of b.
func Within(a, b geom.Geom) (bool, error) {
	pa, err := decompose(a)
	if err != nil {
		return false, err
	}
	pb, err := decompose(b)
	if err != nil {
		return false, err
	}
	return within(pa, pb), nil
}

func within(a, b *parts) bool {
	if a.empty() || b.empty() || a.dim() > b.dim() {
		return false
	}
	switch b.dim() {
	case 0:
		for _, p := range a.points {
			if !containsPoint(b.points, p) {
				return false
			}
		}
		return true
	case 1:
		return withinLineal(a, b)
	default:
		return withinPolygonal(a, b)
	}
}

func containsPoint(pts []geom.Point, p geom.Point) bool {
	for _, q := range pts {
		if p == q {
			return true
		}
	}
	return false
}

func withinLineal(a, b *parts) bool {
	// Points of b are ignored: b is lineal, so they only add boundary
	// and interior that a lineal or puntal a cannot rely on.
	sb := b.lineSegments()
	bnd := b.boundary()
	interior := false
	onLine := func(p geom.Point) bool {
		for _, s := range sb {
			if onSegment(p, s) {
				return true
			}
		}
		return false
	}
	for _, p := range a.points {
		if !onLine(p) {
			return false
		}
		if !containsPoint(bnd, p) {
			interior = true
		}
	}
	for _, s := range a.lineSegments() {
		if s.degenerate() {
			if !onLine(s.a) {
				return false
			}
			if !containsPoint(bnd, s.a) {
				interior = true
			}
			continue
		}
		if !covered(s, sb) {
			return false
		}
		interior = true
	}
	return interior
}

// covered returns whether every point of s lies on the union of segs.
func covered(s segment, segs []segment) bool {
	type interval struct{ lo, hi float64 }
	var ivs []interval
	for _, t := range segs {
		if orient(s.a, s.b, t.a) != 0 || orient(s.a, s.b, t.b) != 0 {
			continue
		}
		c := crossings(s, t)
		if len(c) != 2 {
			// Collinear but disjoint, or t is degenerate.
			continue
		}
		lo, hi := math.Min(c[0], c[1]), math.Max(c[0], c[1])
		if hi > lo {
			ivs = append(ivs, interval{lo, hi})
		}
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].lo < ivs[j].lo })
	reach := 0.0
	for _, iv := range ivs {
		if iv.lo > reach {
			return false
		}
		reach = math.Max(reach, iv.hi)
	}
	return reach >= 1
}

func withinPolygonal(a, b *parts) bool {
	interior := false
	for _, p := range a.points {
		switch pointStatus(p, b.polys) {
		case geom.Outside:
			return false
		case geom.Inside:
			interior = true
		}
	}
	edges := b.ringSegments()
	for _, s := range a.lineSegments() {
		in, ok := segmentInPolygons(s, edges, b.polys)
		if !ok {
			return false
		}
		interior = interior || in
	}
	if len(a.polys) == 0 {
		return interior
	}

	for _, s := range a.ringSegments() {
		in, ok := segmentInPolygons(s, edges, b.polys)
		if !ok {
			return false
		}
		interior = interior || in
	}
	// The boundary of b must not pass through the interior of a.
	aEdges := a.ringSegments()
	for _, s := range edges {
		for _, t := range splitSegment(s, aEdges) {
			if pointStatus(lerp(t, 0.5), a.polys) == geom.Inside {
				return false
			}
		}
		if pointStatus(s.a, a.polys) == geom.Inside {
			return false
		}
	}
	if !interior {
		// All of a's boundary lies on b's boundary, so a is either
		// inside b or fills one of its holes.
		for _, pg := range a.polys {
			if p, ok := interiorPoint(pg); ok && pointStatus(p, b.polys) == geom.Inside {
				return true
			}
		}
	}
	return interior
}

// segmentInPolygons reports whether s lies entirely in the closure of
// polys (ok) and whether any part of it lies in their interior (in).
func segmentInPolygons(s segment, edges []segment, polys []geom.Polygon) (in, ok bool) {
	for _, p := range []geom.Point{s.a, s.b} {
		switch pointStatus(p, polys) {
		case geom.Outside:
			return false, false
		case geom.Inside:
			in = true
		}
	}
	if s.degenerate() {
		return in, true
	}
	for _, t := range splitSegment(s, edges) {
		switch pointStatus(lerp(t, 0.5), polys) {
		case geom.Outside:
			return false, false
		case geom.Inside:
			in = true
		}
	}
	return in, true
}

// splitSegment splits s at every point where it meets one of edges.
func splitSegment(s segment, edges []segment) []segment {
	ts := []float64{0, 1}
	for _, e := range edges {
		ts = append(ts, crossings(s, e)...)
	}
	sort.Float64s(ts)
	var out []segment
	for i := 0; i < len(ts)-1; i++ {
		if ts[i+1] > ts[i] {
			out = append(out, segment{lerp(s, ts[i]), lerp(s, ts[i+1])})
		}
	}
	return out
}

// interiorPoint returns a point in the interior of pg by scanning a
// horizontal line through the middle of its extent and taking the middle
// of the widest interior interval.
func interiorPoint(pg geom.Polygon) (geom.Point, bool) {
	b := pg.Bounds()
	y := (b.Min.Y + b.Max.Y) / 2
	var xs []float64
	for _, s := range polygonSegments(pg) {
		if (s.a.Y > y) != (s.b.Y > y) {
			xs = append(xs, s.a.X+(y-s.a.Y)*(s.b.X-s.a.X)/(s.b.Y-s.a.Y))
		}
	}
	sort.Float64s(xs)
	best, width := geom.Point{}, 0.0
	for i := 0; i+1 < len(xs); i += 2 {
		if w := xs[i+1] - xs[i]; w > width {
			best, width = geom.Point{X: (xs[i] + xs[i+1]) / 2, Y: y}, w
		}
	}
	return best, width > 0
}
