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
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"github.com/ctessum/geom"
)

func TestSparse_contains(t *testing.T) {
	ref := mustCollection(t, Polygon, rect(0, 0, 10, 10))
	query := mustCollection(t, Point, pt(5, 5), pt(20, 20))
	have, err := testEngine(2).Sparse(ref, query, Contains)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]int{{1}}
	if !reflect.DeepEqual(want, have) {
		t.Errorf("want %v but have %v", want, have)
	}
}

func TestSparse(t *testing.T) {
	ref := mustCollection(t, Polygon,
		rect(0, 0, 10, 10),
		nil,
		rect(5, 5, 15, 15),
		rect(100, 100, 101, 101),
	)
	query := mustCollection(t, Polygon,
		rect(1, 1, 2, 2),
		rect(6, 6, 7, 7),
		rect(0, 0, 10, 10),
		nil,
		rect(-50, -50, 200, 200),
	)
	tests := []struct {
		pred Predicate
		want [][]int
	}{
		{
			pred: Intersects,
			want: [][]int{{1, 2, 3, 5}, {}, {2, 3, 5}, {5}},
		},
		{
			pred: Contains,
			want: [][]int{{1, 2, 3}, {}, {2}, {}},
		},
		{
			pred: Within,
			want: [][]int{{3, 5}, {}, {5}, {5}},
		},
	}
	for _, test := range tests {
		t.Run(test.pred.String(), func(t *testing.T) {
			have, err := testEngine(3).Sparse(ref, query, test.pred)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(test.want, have) {
				t.Errorf("want %v but have %v", test.want, have)
			}
		})
	}
}

func TestSparse_invalid(t *testing.T) {
	ref := &Collection{Kind: Polygon, Geoms: []geom.Geom{rect(0, 0, 1, 1), pt(1, 1)}}
	query := mustCollection(t, Point, pt(5, 5))
	for _, pred := range []Predicate{Intersects, Contains, Within} {
		if _, err := Sparse(ref, query, pred); !errors.Is(err, ErrInvalidGeometryType) {
			t.Errorf("%v: want ErrInvalidGeometryType but have %v", pred, err)
		}
	}
	if _, err := Sparse(query, query, Predicate(7)); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("want ErrInvalidParameter but have %v", err)
	}
}

func TestParsePredicate(t *testing.T) {
	for _, p := range []Predicate{Intersects, Contains, Within} {
		pp, err := ParsePredicate(p.String())
		if err != nil {
			t.Fatal(err)
		}
		if pp != p {
			t.Errorf("want %v but have %v", p, pp)
		}
	}
	if _, err := ParsePredicate("touches"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("want ErrInvalidParameter but have %v", err)
	}
}

// TestSparse_soundness checks that every exact match is also an envelope
// candidate, and that the output is the same whatever the number of
// workers.
func TestSparse_soundness(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	ref := mustCollection(t, LineString, randomLines(300, r)...)
	query := mustCollection(t, LineString, randomLines(300, r)...)

	candidates, err := testEngine(4).Candidates(ref, query)
	if err != nil {
		t.Fatal(err)
	}
	var first [][]int
	for _, procs := range []int{1, 2, 7} {
		have, err := testEngine(procs).Sparse(ref, query, Intersects)
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = have
		} else if !reflect.DeepEqual(first, have) {
			t.Fatalf("procs=%d: output differs from single worker", procs)
		}
		for i, matches := range have {
			if !sort.IntsAreSorted(matches) {
				t.Errorf("reference %d: matches %v are not sorted", i+1, matches)
			}
			for _, j := range matches {
				if k := sort.SearchInts(candidates[i], j); k == len(candidates[i]) || candidates[i][k] != j {
					t.Errorf("reference %d: match %d is not a candidate", i+1, j)
				}
			}
		}
	}
}

func TestCandidates(t *testing.T) {
	ref := mustCollection(t, LineString, line(0, 0, 10, 10))
	query := mustCollection(t, Point, pt(1, 9), pt(20, 20), pt(5, 5))
	have, err := testEngine(1).Candidates(ref, query)
	if err != nil {
		t.Fatal(err)
	}
	if want := [][]int{{1, 3}}; !reflect.DeepEqual(want, have) {
		t.Errorf("want %v but have %v", want, have)
	}
	exact, err := testEngine(1).Sparse(ref, query, Intersects)
	if err != nil {
		t.Fatal(err)
	}
	if want := [][]int{{3}}; !reflect.DeepEqual(want, exact) {
		t.Errorf("want %v but have %v", want, exact)
	}
}
