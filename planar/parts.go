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

// Package planar implements exact planar predicates and distances between
// geometries from github.com/ctessum/geom. Every geometry is broken down
// into its points, line strings and polygons, and the predicates are
// evaluated over those parts.
package planar

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// parts holds the decomposition of a geometry.
type parts struct {
	points []geom.Point
	lines  [][]geom.Point
	polys  []geom.Polygon
}

// UnsupportedGeometryError is returned for geometry types that cannot be
// decomposed.
type UnsupportedGeometryError struct {
	Geom geom.Geom
}

func (e UnsupportedGeometryError) Error() string {
	return fmt.Sprintf("planar: unsupported geometry type %T", e.Geom)
}

func decompose(g geom.Geom) (*parts, error) {
	p := new(parts)
	if err := p.add(g); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parts) add(g geom.Geom) error {
	switch t := g.(type) {
	case geom.Point:
		p.points = append(p.points, t)
	case *geom.Point:
		p.points = append(p.points, *t)
	case geom.MultiPoint:
		p.points = append(p.points, t...)
	case geom.LineString:
		p.addLine(t)
	case geom.MultiLineString:
		for _, l := range t {
			p.addLine(l)
		}
	case geom.Polygon:
		p.addPolygon(t)
	case geom.MultiPolygon:
		for _, pg := range t {
			p.addPolygon(pg)
		}
	case geom.GeometryCollection:
		for _, gg := range t {
			if err := p.add(gg); err != nil {
				return err
			}
		}
	default:
		return UnsupportedGeometryError{Geom: g}
	}
	return nil
}

func (p *parts) addLine(l []geom.Point) {
	switch len(l) {
	case 0:
	case 1:
		p.points = append(p.points, l[0])
	default:
		p.lines = append(p.lines, l)
	}
}

func (p *parts) addPolygon(pg geom.Polygon) {
	var rings geom.Polygon
	for _, r := range pg {
		if len(r) > 0 {
			rings = append(rings, r)
		}
	}
	if len(rings) > 0 {
		p.polys = append(p.polys, rings)
	}
}

func (p *parts) empty() bool {
	return len(p.points) == 0 && len(p.lines) == 0 && len(p.polys) == 0
}

// dim returns the topological dimension of the highest-dimension part,
// or -1 for an empty geometry.
func (p *parts) dim() int {
	switch {
	case len(p.polys) > 0:
		return 2
	case len(p.lines) > 0:
		return 1
	case len(p.points) > 0:
		return 0
	}
	return -1
}

type segment struct {
	a, b geom.Point
}

func (s segment) degenerate() bool { return s.a.X == s.b.X && s.a.Y == s.b.Y }

// lineSegments returns the segments of the line strings.
func (p *parts) lineSegments() []segment {
	var out []segment
	for _, l := range p.lines {
		for i := 0; i < len(l)-1; i++ {
			out = append(out, segment{l[i], l[i+1]})
		}
	}
	return out
}

// ringSegments returns the segments of the polygon rings. Rings are
// closed implicitly if the last point does not repeat the first.
func (p *parts) ringSegments() []segment {
	var out []segment
	for _, pg := range p.polys {
		out = append(out, polygonSegments(pg)...)
	}
	return out
}

func polygonSegments(pg geom.Polygon) []segment {
	var out []segment
	for _, r := range pg {
		for i := range r {
			j := (i + 1) % len(r)
			s := segment{r[i], r[j]}
			if !s.degenerate() {
				out = append(out, s)
			}
		}
	}
	return out
}

// allSegments returns line and ring segments together.
func (p *parts) allSegments() []segment {
	return append(p.lineSegments(), p.ringSegments()...)
}

// vertices returns every coordinate of the geometry.
func (p *parts) vertices() []geom.Point {
	out := append([]geom.Point{}, p.points...)
	for _, l := range p.lines {
		out = append(out, l...)
	}
	for _, pg := range p.polys {
		for _, r := range pg {
			out = append(out, r...)
		}
	}
	return out
}

// representatives returns one vertex from every component.
func (p *parts) representatives() []geom.Point {
	out := append([]geom.Point{}, p.points...)
	for _, l := range p.lines {
		out = append(out, l[0])
	}
	for _, pg := range p.polys {
		out = append(out, pg[0][0])
	}
	return out
}

// boundary returns the end points of the line strings that form the
// boundary of the lineal part under the mod-2 rule.
func (p *parts) boundary() []geom.Point {
	count := make(map[geom.Point]int)
	var order []geom.Point
	for _, l := range p.lines {
		for _, e := range []geom.Point{l[0], l[len(l)-1]} {
			if _, ok := count[e]; !ok {
				order = append(order, e)
			}
			count[e]++
		}
	}
	var out []geom.Point
	for _, e := range order {
		if count[e]%2 == 1 {
			out = append(out, e)
		}
	}
	return out
}

// orient returns twice the signed area of the triangle abc.
func orient(a, b, c geom.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func inBox(p, a, b geom.Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

// onSegment reports whether p lies on the closed segment s.
func onSegment(p geom.Point, s segment) bool {
	return orient(s.a, s.b, p) == 0 && inBox(p, s.a, s.b)
}

// segmentsIntersect reports whether the closed segments s and t share
// at least one point.
func segmentsIntersect(s, t segment) bool {
	d1 := orient(t.a, t.b, s.a)
	d2 := orient(t.a, t.b, s.b)
	d3 := orient(s.a, s.b, t.a)
	d4 := orient(s.a, s.b, t.b)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && inBox(s.a, t.a, t.b)) ||
		(d2 == 0 && inBox(s.b, t.a, t.b)) ||
		(d3 == 0 && inBox(t.a, s.a, s.b)) ||
		(d4 == 0 && inBox(t.b, s.a, s.b))
}

// crossings returns the parameters along s, in [0, 1], at which s meets t.
func crossings(s, t segment) []float64 {
	if !segmentsIntersect(s, t) {
		return nil
	}
	dx, dy := s.b.X-s.a.X, s.b.Y-s.a.Y
	ex, ey := t.b.X-t.a.X, t.b.Y-t.a.Y
	den := dx*ey - dy*ex
	if den != 0 {
		num := (t.a.X-s.a.X)*ey - (t.a.Y-s.a.Y)*ex
		return []float64{clamp01(num / den)}
	}
	// Collinear overlap.
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return []float64{0}
	}
	proj := func(p geom.Point) float64 {
		return clamp01(((p.X-s.a.X)*dx + (p.Y-s.a.Y)*dy) / l2)
	}
	return []float64{proj(t.a), proj(t.b)}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func lerp(s segment, t float64) geom.Point {
	return geom.Point{
		X: s.a.X + (s.b.X-s.a.X)*t,
		Y: s.a.Y + (s.b.Y-s.a.Y)*t,
	}
}
