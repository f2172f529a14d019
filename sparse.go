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
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/conflate/planar"
)

// Predicate is an exact spatial relationship between a reference
// geometry and a query geometry.
type Predicate int

const (
	// Intersects holds when the reference and query geometries share
	// at least one point.
	Intersects Predicate = iota
	// Contains holds when the reference geometry contains the query
	// geometry.
	Contains
	// Within holds when the reference geometry is within the query
	// geometry.
	Within
)

func (p Predicate) String() string {
	switch p {
	case Intersects:
		return "intersects"
	case Contains:
		return "contains"
	case Within:
		return "within"
	}
	return fmt.Sprintf("Predicate(%d)", int(p))
}

// ParsePredicate returns the predicate with the given name:
// "intersects", "contains", or "within".
func ParsePredicate(s string) (Predicate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "intersects":
		return Intersects, nil
	case "contains":
		return Contains, nil
	case "within":
		return Within, nil
	}
	return 0, fmt.Errorf("%w: unknown predicate %q; valid options are intersects, contains, and within", ErrInvalidParameter, s)
}

// eval tests the predicate with the reference geometry first.
func (p Predicate) eval(reference, query geom.Geom) (bool, error) {
	switch p {
	case Intersects:
		return planar.Intersects(reference, query)
	case Contains:
		return planar.Contains(reference, query)
	case Within:
		return planar.Within(reference, query)
	}
	return false, fmt.Errorf("%w: unknown predicate %d", ErrInvalidParameter, int(p))
}

// Sparse evaluates pred between every geometry in reference and every
// geometry in query. The result has one entry per reference position,
// holding the ascending 1-based positions of the query geometries for which
// pred(reference, query) holds. Missing and degenerate geometries match
// nothing.
//
// Candidate pairs are found by envelope intersection using a spatial
// index over reference, and then confirmed with the exact predicate.
func (e *Engine) Sparse(reference, query *Collection, pred Predicate) ([][]int, error) {
	if err := reference.require("sparse"); err != nil {
		return nil, err
	}
	if err := query.require("sparse"); err != nil {
		return nil, err
	}
	if pred < Intersects || pred > Within {
		return nil, fmt.Errorf("%w: unknown predicate %d", ErrInvalidParameter, int(pred))
	}
	return e.sparse(reference, query, "sparse "+pred.String(), pred.eval)
}

// Candidates returns, for every reference position, the ascending 1-based
// positions of the query geometries whose envelopes intersect the envelope
// of the reference geometry. It is the first phase of Sparse, without the
// exact test.
func (e *Engine) Candidates(reference, query *Collection) ([][]int, error) {
	if err := reference.require("candidates"); err != nil {
		return nil, err
	}
	if err := query.require("candidates"); err != nil {
		return nil, err
	}
	return e.sparse(reference, query, "candidates", nil)
}

func (e *Engine) sparse(reference, query *Collection, op string, test func(r, q geom.Geom) (bool, error)) ([][]int, error) {
	log := e.log()
	idx := newGeomIndex(reference, log, "reference")
	q := cacheCollection(query, log, "query")

	out := make([][]int, reference.Len())
	for i := range out {
		out[i] = []int{}
	}
	var (
		mu       sync.Mutex
		firstErr error
	)
	e.parallel(len(q), func(_, i int) {
		g := q[i]
		if g == nil {
			return
		}
		var matches []int
		var err error
		idx.tree.Search(g.Bounds(), func(c int) bool {
			if test != nil {
				var ok bool
				ok, err = test(idx.cached[c].Geom, g.Geom)
				if err != nil {
					return false
				}
				if !ok {
					return true
				}
			}
			matches = append(matches, c)
			return true
		})
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("conflate: %s: query geometry %d: %w", op, i+1, err)
			}
			return
		}
		for _, c := range matches {
			out[c] = append(out[c], i+1)
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}

	var total int
	for _, r := range out {
		sort.Ints(r)
		total += len(r)
	}
	log.WithFields(logrus.Fields{
		"operation": op,
		"reference": reference.Len(),
		"query":     query.Len(),
		"matches":   total,
	}).Info("conflate: sparse evaluation complete")
	return out, nil
}
