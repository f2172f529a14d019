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
	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/conflate/index"
)

// Segment is a two-point piece of a line in a network.
type Segment struct {
	A, B geom.Point

	// Line is the 0-based position in the network of the line the
	// segment came from.
	Line int

	// Slope is dy/dx. It is ±Inf for vertical segments and NaN for
	// segments of zero length.
	Slope float64
}

// Slope returns the slope of the line from a to b. Vertical lines have
// infinite slope and coincident points have a slope of NaN.
func Slope(a, b geom.Point) float64 {
	return (b.Y - a.Y) / (b.X - a.X)
}

// Bounds returns the envelope of s.
func (s *Segment) Bounds() *geom.Bounds {
	b := geom.NewBoundsPoint(s.A)
	b.Extend(geom.NewBoundsPoint(s.B))
	return b
}

// segmentsOf returns the segments of the line or lines in g, which is the
// network geometry at position line. Consecutive points of each line
// string form a segment; separate parts of a MultiLineString are not
// joined.
func segmentsOf(g geom.Geom, line int) []Segment {
	var out []Segment
	for _, l := range lines(g) {
		for k := 0; k < len(l)-1; k++ {
			out = append(out, Segment{
				A:     l[k],
				B:     l[k+1],
				Line:  line,
				Slope: Slope(l[k], l[k+1]),
			})
		}
	}
	return out
}

// SegmentIndex is a spatial index over every segment of a line network.
// It can be shared by concurrent searches.
type SegmentIndex struct {
	segments []Segment
	lines    int
	tree     *index.Tree
}

// NewSegmentIndex breaks each line of network, which must hold LineString
// or MultiLineString geometries, into its segments and bulk loads them
// into one spatial index. Lines with fewer than two points and missing
// lines contribute no segments.
func (e *Engine) NewSegmentIndex(network *Collection) (*SegmentIndex, error) {
	if err := network.require("segment index", LineString, MultiLineString); err != nil {
		return nil, err
	}
	s := &SegmentIndex{lines: network.Len()}
	for i, g := range network.Geoms {
		if g == nil {
			continue
		}
		s.segments = append(s.segments, segmentsOf(g, i)...)
	}
	b := make([]*geom.Bounds, len(s.segments))
	for i := range s.segments {
		b[i] = s.segments[i].Bounds()
	}
	s.tree = index.New(b)
	e.log().WithFields(logrus.Fields{
		"lines":    network.Len(),
		"segments": len(s.segments),
	}).Debug("conflate: built segment index")
	return s, nil
}

// Len returns the number of segments in the index.
func (s *SegmentIndex) Len() int { return len(s.segments) }

// Lines returns the number of lines in the indexed network.
func (s *SegmentIndex) Lines() int { return s.lines }

// Search calls fn for every segment whose envelope intersects b, until
// fn returns false.
func (s *SegmentIndex) Search(b *geom.Bounds, fn func(*Segment) bool) {
	s.tree.Search(b, func(id int) bool {
		return fn(&s.segments[id])
	})
}
