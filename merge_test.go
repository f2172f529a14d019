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
	"reflect"
	"testing"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/floats"
)

func TestMerge_overlap(t *testing.T) {
	x := mustCollection(t, LineString, line(0, 0, 10, 0))
	y := mustCollection(t, LineString, line(2, 0, 8, 0))
	have, err := testEngine(2).Merge(x, y, 0.01, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if len(have) != 1 {
		t.Fatalf("want 1 match but have %v", have)
	}
	if have[0].I != 1 || have[0].J != 1 || !floats.EqualWithinAbs(have[0].SharedLen, 6, 1e-12) {
		t.Errorf("want {1 1 6} but have %v", have[0])
	}
}

func TestMerge_separated(t *testing.T) {
	x := mustCollection(t, LineString, line(0, 0, 10, 0))
	y := mustCollection(t, LineString, line(0, 5, 10, 5))
	have, err := testEngine(2).Merge(x, y, 1, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if len(have) != 0 {
		t.Errorf("want no matches but have %v", have)
	}
}

func TestMerge_slopeBoundary(t *testing.T) {
	// The target has slope 0.5 against a horizontal reference.
	x := mustCollection(t, LineString, line(0, 0, 10, 0))
	y := mustCollection(t, LineString, line(0, 0, 2, 1))
	e := testEngine(1)

	have, err := e.Merge(x, y, 1, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(have) != 0 {
		t.Errorf("slope difference equal to the tolerance: want no matches but have %v", have)
	}
	have, err = e.Merge(x, y, 1, math.Nextafter(0.5, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(have) != 1 {
		t.Errorf("slope difference just below the tolerance: want 1 match but have %v", have)
	}
}

func TestMerge_distanceBoundary(t *testing.T) {
	x := mustCollection(t, LineString, line(0, 0, 10, 0))
	y := mustCollection(t, LineString, line(2, 0.5, 8, 0.5))
	e := testEngine(1)

	have, err := e.Merge(x, y, 0.5, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if len(have) != 1 {
		t.Errorf("distance equal to the threshold: want 1 match but have %v", have)
	} else if !floats.EqualWithinAbs(have[0].SharedLen, 6, 1e-12) {
		t.Errorf("want shared length 6 but have %g", have[0].SharedLen)
	}

	y = mustCollection(t, LineString, line(2, 0.5+1e-9, 8, 0.5+1e-9))
	have, err = e.Merge(x, y, 0.5, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if len(have) != 0 {
		t.Errorf("distance beyond the threshold: want no matches but have %v", have)
	}
}

func TestMerge_diagonal(t *testing.T) {
	// Reference from (0,0) to (8,6) has length 10; the target covers
	// the middle half of it in y.
	x := mustCollection(t, LineString, line(0, 0, 8, 6))
	y := mustCollection(t, LineString, line(2, 1.5, 6, 4.5))
	have, err := testEngine(1).Merge(x, y, 0.1, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	want := Matches{{I: 1, J: 1, SharedLen: 5}}
	if len(have) != 1 || have[0].I != 1 || have[0].J != 1 || !floats.EqualWithinAbs(have[0].SharedLen, 5, 1e-12) {
		t.Errorf("want %v but have %v", want, have)
	}
}

func TestMerge_vertical(t *testing.T) {
	x := mustCollection(t, LineString, line(0, 0, 0, 10), line(5, 0, 6, 10))
	y := mustCollection(t, LineString, line(0.1, 12, 0.1, 4))
	have, err := testEngine(1).Merge(x, y, 0.5, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	// The target runs in the opposite direction, so its slope is -Inf.
	// The second reference line has a finite slope and never matches.
	if len(have) != 1 || have[0].I != 1 || !floats.EqualWithinAbs(have[0].SharedLen, 6, 1e-12) {
		t.Errorf("want one match of length 6 with line 1 but have %v", have)
	}
	have, err = testEngine(1).Merge(x, y, 0.5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(have) != 0 {
		t.Errorf("zero tolerance: want no matches but have %v", have)
	}
}

func TestMerge_accumulate(t *testing.T) {
	// A target with three collinear segments and a MultiLineString
	// reference: the sums over segments end up in one row per pair.
	x := mustCollection(t, MultiLineString,
		geom.MultiLineString{line(0, 0, 10, 0), line(20, 0, 30, 0)},
		nil,
		geom.MultiLineString{line(0, 100, 10, 100)},
	)
	y := mustCollection(t, LineString,
		line(1, 0, 4, 0, 8, 0, 25, 0),
		line(0, 100, 3, 100),
		geom.LineString{pt(1, 1)},
	)
	have, err := testEngine(3).Merge(x, y, 0.1, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	// Segment (8,0)-(25,0) overlaps line 1 by 2 in its first part and
	// by 5 in its second part.
	want := Matches{
		{I: 1, J: 1, SharedLen: 3 + 4 + 2 + 5},
		{I: 3, J: 2, SharedLen: 3},
	}
	if !reflect.DeepEqual(want, have) {
		t.Errorf("want %v but have %v", want, have)
	}
	i, j, l := have.Columns()
	if !reflect.DeepEqual(i, []int{1, 3}) || !reflect.DeepEqual(j, []int{1, 2}) || !reflect.DeepEqual(l, []float64{14, 3}) {
		t.Errorf("columns: have %v %v %v", i, j, l)
	}
	if tot := have.TotalByReference(); !reflect.DeepEqual(tot, map[int]float64{1: 14, 3: 3}) {
		t.Errorf("totals: have %v", tot)
	}
}

// TestMerge_additive checks that splitting the target lines at a vertex
// and merging the halves separately gives the same totals, and that the
// output does not depend on the number of workers.
func TestMerge_additive(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	ref := randomLines(200, r)
	x := mustCollection(t, LineString, ref...)

	// Targets are noisy copies of the reference lines.
	target := make([]geom.Geom, len(ref))
	for i, g := range ref {
		l := append(geom.LineString{}, g.(geom.LineString)...)
		for k := range l {
			l[k].X += r.Float64() * 0.1
			l[k].Y += r.Float64() * 0.1
		}
		target[i] = l
	}
	y := mustCollection(t, LineString, target...)

	var whole Matches
	for _, procs := range []int{1, 4} {
		have, err := testEngine(procs).Merge(x, y, 0.5, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		if whole == nil {
			whole = have
		} else if !reflect.DeepEqual(whole, have) {
			t.Fatalf("procs=%d: output differs from single worker", procs)
		}
	}
	if len(whole) == 0 {
		t.Fatal("no matches")
	}

	first := make([]geom.Geom, len(target))
	second := make([]geom.Geom, len(target))
	for i, g := range target {
		l := g.(geom.LineString)
		k := len(l) / 2
		first[i] = l[:k+1]
		second[i] = l[k:]
	}
	e := testEngine(2)
	idx, err := e.NewSegmentIndex(x)
	if err != nil {
		t.Fatal(err)
	}
	sum := make(map[pair]float64)
	for _, half := range [][]geom.Geom{first, second} {
		m, err := e.MergeIndex(idx, mustCollection(t, LineString, half...), 0.5, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range m {
			sum[pair{r.I, r.J}] += r.SharedLen
		}
	}
	if len(sum) != len(whole) {
		t.Errorf("want %d pairs but have %d", len(whole), len(sum))
	}
	for _, r := range whole {
		if !floats.EqualWithinAbsOrRel(sum[pair{r.I, r.J}], r.SharedLen, 1e-9, 1e-9) {
			t.Errorf("pair (%d, %d): want %g but have %g", r.I, r.J, r.SharedLen, sum[pair{r.I, r.J}])
		}
	}
}

func TestMerge_invalid(t *testing.T) {
	lines := mustCollection(t, LineString, line(0, 0, 1, 1))
	points := mustCollection(t, Point, pt(0, 0))
	e := testEngine(1)
	if _, err := e.Merge(points, lines, 1, 1); !errors.Is(err, ErrInvalidGeometryType) {
		t.Errorf("want ErrInvalidGeometryType but have %v", err)
	}
	if _, err := e.Merge(lines, points, 1, 1); !errors.Is(err, ErrInvalidGeometryType) {
		t.Errorf("want ErrInvalidGeometryType but have %v", err)
	}
	if _, err := e.Merge(lines, lines, -1, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("want ErrInvalidParameter but have %v", err)
	}
	if _, err := e.Merge(lines, lines, 1, math.NaN()); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("want ErrInvalidParameter but have %v", err)
	}
}

func TestSlopeTolerant(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		s1, s2, tol float64
		want        bool
	}{
		{0, 0, 0.1, true},
		{0, 0, 0, false},
		{0, 0.1, 0.1, false},
		{inf, inf, 0.1, true},
		{inf, -inf, 0.1, true},
		{inf, 1e300, 1e301, false},
		{-inf, 0, inf, false},
		{math.NaN(), 0, 1, false},
		{math.NaN(), math.NaN(), 1, false},
	}
	for _, test := range tests {
		if have := slopeTolerant(test.s1, test.s2, test.tol); have != test.want {
			t.Errorf("%g, %g, %g: want %v but have %v", test.s1, test.s2, test.tol, test.want, have)
		}
	}
}

func TestSharedLength(t *testing.T) {
	b := func(x0, y0, x1, y1 float64) *geom.Bounds {
		return &geom.Bounds{Min: pt(x0, y0), Max: pt(x1, y1)}
	}
	tests := []struct {
		name     string
		xo, yo   interval
		okx, oky bool
		cb       *geom.Bounds
		want     float64
		ok       bool
	}{
		{name: "both", xo: interval{0, 4}, okx: true, yo: interval{0, 3}, oky: true, cb: b(0, 0, 8, 6), want: 5, ok: true},
		{name: "flat candidate", xo: interval{2, 8}, okx: true, yo: interval{0, 0}, oky: true, cb: b(0, 0, 10, 0), want: 6, ok: true},
		{name: "vertical candidate", xo: interval{0, 0}, okx: true, yo: interval{4, 10}, oky: true, cb: b(0, 0, 0, 10), want: 6, ok: true},
		{name: "point candidate", xo: interval{1, 1}, okx: true, yo: interval{1, 1}, oky: true, cb: b(1, 1, 1, 1), want: 0, ok: true},
		{name: "x only", xo: interval{1, 3}, okx: true, cb: b(0, 0, 5, 5), want: 2, ok: true},
		{name: "y only", yo: interval{1, 4}, oky: true, cb: b(0, 0, 5, 5), want: 3, ok: true},
		{name: "neither", cb: b(0, 0, 5, 5), ok: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			have, ok := sharedLength(test.xo, test.okx, test.yo, test.oky, test.cb)
			if ok != test.ok {
				t.Fatalf("want ok=%v but have %v", test.ok, ok)
			}
			if ok && !floats.EqualWithinAbs(have, test.want, 1e-12) {
				t.Errorf("want %g but have %g", test.want, have)
			}
		})
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		s1, e1, s2, e2 float64
		want           interval
		ok             bool
	}{
		{0, 10, 2, 8, interval{2, 8}, true},
		{0, 5, 5, 10, interval{5, 5}, true},
		{0, 5, 6, 10, interval{}, false},
		{6, 10, 0, 5, interval{}, false},
		{0, 10, -5, 3, interval{0, 3}, true},
	}
	for _, test := range tests {
		have, ok := overlap(test.s1, test.e1, test.s2, test.e2)
		if ok != test.ok || have != test.want {
			t.Errorf("%v: want %v %v but have %v %v", test, test.want, test.ok, have, ok)
		}
	}
}
