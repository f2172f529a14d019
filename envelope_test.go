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

package conflate

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ctessum/geom"
)

// coords returns every coordinate of g.
func coords(g geom.Geom) []geom.Point {
	switch t := g.(type) {
	case geom.Point:
		return []geom.Point{t}
	case geom.MultiPoint:
		return t
	case geom.LineString:
		return t
	case geom.MultiLineString:
		var out []geom.Point
		for _, l := range t {
			out = append(out, l...)
		}
		return out
	case geom.Polygon:
		var out []geom.Point
		for _, r := range t {
			out = append(out, r...)
		}
		return out
	case geom.MultiPolygon:
		var out []geom.Point
		for _, p := range t {
			out = append(out, coords(p)...)
		}
		return out
	}
	panic("unsupported geometry")
}

func TestCached_containment(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	geoms := append(randomLines(100, r),
		pt(3, 4),
		geom.MultiPoint{pt(-1, 2), pt(5, -7)},
		geom.MultiLineString{line(0, 0, 1, 1), line(-5, 3, 2, 2)},
		rect(-2, -3, 4, 5),
		geom.MultiPolygon{rect(0, 0, 1, 1), rect(10, 10, 12, 11)},
		line(2, 2, 2, 8),
	)
	for i, g := range geoms {
		c, err := NewCached(g)
		if err != nil {
			t.Fatalf("%d: %v", i, err)
		}
		b := c.Bounds()
		if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y {
			t.Errorf("%d: invalid envelope %v", i, b)
		}
		for _, p := range coords(g) {
			if p.X < b.Min.X || p.X > b.Max.X || p.Y < b.Min.Y || p.Y > b.Max.Y {
				t.Errorf("%d: point %v outside envelope %v", i, p, b)
			}
		}
		if c.Bounds() != b {
			t.Errorf("%d: envelope recomputed", i)
		}
	}
}

func TestCached_degenerate(t *testing.T) {
	for i, g := range []geom.Geom{
		nil,
		geom.LineString{},
		geom.MultiPolygon{},
		geom.MultiPoint{pt(math.NaN(), 1)},
	} {
		if _, err := NewCached(g); !errors.Is(err, ErrDegenerateGeometry) {
			t.Errorf("%d: want ErrDegenerateGeometry but have %v", i, err)
		}
	}
	if _, err := NewCached(pt(1, 1)); err != nil {
		t.Errorf("a single point has a valid, zero-area envelope: %v", err)
	}
}

func TestCacheCollection_skip(t *testing.T) {
	c := mustCollection(t, LineString, line(0, 0, 1, 1), nil, geom.LineString{}, line(2, 2, 3, 3))
	cached := cacheCollection(c, testEngine(1).log(), "test")
	for i, want := range []bool{true, false, false, true} {
		if have := cached[i] != nil; have != want {
			t.Errorf("position %d: want cached=%v but have %v", i, want, have)
		}
	}
}
