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
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/conflate/planar"
	"gonum.org/v1/gonum/floats"
)

// Match is a pair of matched lines and the length they share.
type Match struct {
	// I is the 1-based position of the reference line.
	I int
	// J is the 1-based position of the target line.
	J int
	// SharedLen is the estimated length of overlap, summed over all
	// matching segment pairs of the two lines.
	SharedLen float64
}

// Matches is a table of matched line pairs, sorted by I and then J,
// with at most one row per pair.
type Matches []Match

// Columns returns the table as three columns.
func (m Matches) Columns() (i, j []int, sharedLen []float64) {
	i = make([]int, len(m))
	j = make([]int, len(m))
	sharedLen = make([]float64, len(m))
	for k, r := range m {
		i[k], j[k], sharedLen[k] = r.I, r.J, r.SharedLen
	}
	return
}

// TotalByReference returns the total shared length of every reference
// line that has at least one match, keyed by its 1-based position.
func (m Matches) TotalByReference() map[int]float64 {
	byRef := make(map[int][]float64)
	for _, r := range m {
		byRef[r.I] = append(byRef[r.I], r.SharedLen)
	}
	out := make(map[int]float64, len(byRef))
	for i, v := range byRef {
		out[i] = floats.Sum(v)
	}
	return out
}

type pair struct{ i, j int }

// Merge conflates the target network y onto the reference network x.
// Both must hold LineString or MultiLineString geometries. A segment of
// x matches a segment of y if their slopes differ by less than
// slopeTolerance and they are no more than dist apart. For every matching
// pair of segments, the length of their overlap is estimated from the
// overlap of their envelopes, and the estimates are summed per pair of
// lines.
func (e *Engine) Merge(x, y *Collection, dist, slopeTolerance float64) (Matches, error) {
	if err := checkParameter("merge", "dist", dist); err != nil {
		return nil, err
	}
	if err := checkParameter("merge", "slope tolerance", slopeTolerance); err != nil {
		return nil, err
	}
	if err := y.require("merge", LineString, MultiLineString); err != nil {
		return nil, err
	}
	idx, err := e.NewSegmentIndex(x)
	if err != nil {
		return nil, err
	}
	return e.MergeIndex(idx, y, dist, slopeTolerance)
}

// MergeIndex is like Merge but uses a reference network that has
// already been indexed, so that one index can serve several targets.
func (e *Engine) MergeIndex(idx *SegmentIndex, y *Collection, dist, slopeTolerance float64) (Matches, error) {
	if err := checkParameter("merge", "dist", dist); err != nil {
		return nil, err
	}
	if err := checkParameter("merge", "slope tolerance", slopeTolerance); err != nil {
		return nil, err
	}
	if err := y.require("merge", LineString, MultiLineString); err != nil {
		return nil, err
	}

	// Each worker handles whole target lines, so every (i, j) total is
	// summed by one worker in segment order.
	nprocs := e.nprocs()
	local := make([]map[pair]float64, nprocs)
	for i := range local {
		local[i] = make(map[pair]float64)
	}
	e.parallel(y.Len(), func(pp, j int) {
		g := y.Geoms[j]
		if g == nil {
			return
		}
		acc := local[pp]
		for _, s := range segmentsOf(g, j) {
			matchSegment(idx, &s, dist, slopeTolerance, func(i int, l float64) {
				acc[pair{i + 1, j + 1}] += l
			})
		}
	})

	var out Matches
	for _, m := range local {
		for p, l := range m {
			out = append(out, Match{I: p.i, J: p.j, SharedLen: l})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].I != out[b].I {
			return out[a].I < out[b].I
		}
		return out[a].J < out[b].J
	})
	e.log().WithFields(logrus.Fields{
		"reference segments": idx.Len(),
		"target lines":       y.Len(),
		"dist":               dist,
		"slope tolerance":    slopeTolerance,
		"matches":            len(out),
	}).Info("conflate: merge complete")
	return out, nil
}

// matchSegment finds the reference segments matching the target segment
// s and calls add with the reference line position and the estimated
// shared length of each.
func matchSegment(idx *SegmentIndex, s *Segment, dist, slopeTolerance float64, add func(line int, sharedLen float64)) {
	sb := s.Bounds()
	// Any segment within dist of s has an envelope within dist of the
	// envelope of s.
	query := &geom.Bounds{
		Min: geom.Point{X: sb.Min.X - dist, Y: sb.Min.Y - dist},
		Max: geom.Point{X: sb.Max.X + dist, Y: sb.Max.Y + dist},
	}
	idx.Search(query, func(c *Segment) bool {
		if !slopeTolerant(c.Slope, s.Slope, slopeTolerance) {
			return true
		}
		cb := c.Bounds()
		xo, okx := overlap(cb.Min.X, cb.Max.X, sb.Min.X, sb.Max.X)
		yo, oky := overlap(cb.Min.Y, cb.Max.Y, sb.Min.Y, sb.Max.Y)
		l, ok := sharedLength(xo, okx, yo, oky, cb)
		if !ok {
			// The padded query reached c diagonally but the envelopes
			// themselves share neither range.
			return true
		}
		if planar.SegmentDistance(c.A, c.B, s.A, s.B) > dist {
			return true
		}
		add(c.Line, l)
		return true
	})
}

// slopeTolerant reports whether the slopes s1 and s2 differ by less than
// tol. Two vertical slopes have no difference, whatever their signs; a
// vertical slope is never tolerant of a finite one, and NaN slopes are
// never tolerant.
func slopeTolerant(s1, s2, tol float64) bool {
	inf1, inf2 := math.IsInf(s1, 0), math.IsInf(s2, 0)
	switch {
	case inf1 && inf2:
		return 0 < tol
	case inf1 || inf2:
		return false
	}
	return math.Abs(s1-s2) < tol
}

type interval struct{ start, end float64 }

func (r interval) extent() float64 { return r.end - r.start }

// overlap returns the overlap of the ranges [s1, e1] and [s2, e2]. The
// second return value is false if they do not overlap. Ranges that touch
// overlap with zero extent.
func overlap(s1, e1, s2, e2 float64) (interval, bool) {
	if e1 < s2 || e2 < s1 {
		return interval{}, false
	}
	return interval{math.Max(s1, s2), math.Min(e1, e2)}, true
}

// sharedLength estimates the length of the part of the candidate segment
// with envelope cb that lies in the overlap of the two envelopes. With
// overlap on both axes, the y extent of the overlap is scaled to x by the
// width to height ratio of cb and the two are combined as the sides of a
// right triangle. A candidate with no height uses the x extent instead.
func sharedLength(xo interval, okx bool, yo interval, oky bool, cb *geom.Bounds) (float64, bool) {
	switch {
	case okx && oky:
		w, h := cb.Max.X-cb.Min.X, cb.Max.Y-cb.Min.Y
		if h == 0 {
			return xo.extent(), true
		}
		dy := yo.extent()
		dx := dy * w / h
		return math.Sqrt(dx*dx + dy*dy), true
	case okx:
		return xo.extent(), true
	case oky:
		return yo.extent(), true
	}
	return 0, false
}
