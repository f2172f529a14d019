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
	"math"
	"sync"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/conflate/planar"
)

// at returns the geometry at position i of c, repeating the only element
// of a collection of length 1.
func (c *Collection) at(i int) geom.Geom {
	if len(c.Geoms) == 1 {
		return c.Geoms[0]
	}
	return c.Geoms[i]
}

// DistancePairwise returns the Euclidean distance between the geometries
// at each position of x and y. If either collection has length 1, its
// geometry is paired with every geometry of the other. Pairs with a
// missing geometry have a distance of NaN.
func (e *Engine) DistancePairwise(x, y *Collection) ([]float64, error) {
	if err := x.require("distance"); err != nil {
		return nil, err
	}
	if err := y.require("distance"); err != nil {
		return nil, err
	}
	n, err := broadcast("distance", x.Len(), y.Len())
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	var (
		mu       sync.Mutex
		firstErr error
	)
	e.parallel(n, func(_, i int) {
		a, b := x.at(i), y.at(i)
		if a == nil || b == nil {
			out[i] = math.NaN()
			return
		}
		d, err := planar.Distance(a, b)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("conflate: distance: position %d: %w", i+1, err)
			}
			mu.Unlock()
		}
		out[i] = d
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// DistanceMatrix returns the Euclidean distance between every geometry of
// x and every geometry of y, indexed as [x position][y position].
// Missing geometries give NaN distances.
func (e *Engine) DistanceMatrix(x, y *Collection) ([][]float64, error) {
	if err := x.require("distance matrix"); err != nil {
		return nil, err
	}
	if err := y.require("distance matrix"); err != nil {
		return nil, err
	}
	out := make([][]float64, x.Len())
	var (
		mu       sync.Mutex
		firstErr error
	)
	e.parallel(x.Len(), func(_, i int) {
		row := make([]float64, y.Len())
		for j := range row {
			a, b := x.Geoms[i], y.Geoms[j]
			if a == nil || b == nil {
				row[j] = math.NaN()
				continue
			}
			d, err := planar.Distance(a, b)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("conflate: distance matrix: position %d, %d: %w", i+1, j+1, err)
				}
				mu.Unlock()
			}
			row[j] = d
		}
		out[i] = row
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// ClosestPoints returns, for each position, the point of x nearest to the
// point in p, broadcasting collections of length 1. p must hold points.
// The result is a Point collection in which a position is missing if
// either input is missing there or if the nearest point is not unique.
func (e *Engine) ClosestPoints(x, p *Collection) (*Collection, error) {
	if err := x.require("closest point"); err != nil {
		return nil, err
	}
	if err := p.require("closest point", Point); err != nil {
		return nil, err
	}
	n, err := broadcast("closest point", x.Len(), p.Len())
	if err != nil {
		return nil, err
	}
	out := &Collection{Kind: Point, Geoms: make([]geom.Geom, n)}
	var (
		mu       sync.Mutex
		firstErr error
	)
	e.parallel(n, func(_, i int) {
		pt, err := closestPoint(x.at(i), p.at(i))
		switch {
		case err == nil:
			out.Geoms[i] = pt
		case err != ErrIndeterminateResult:
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("conflate: closest point: position %d: %w", i+1, err)
			}
			mu.Unlock()
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// closestPoint returns ErrIndeterminateResult if there is no single
// closest point.
func closestPoint(g, p geom.Geom) (geom.Geom, error) {
	if g == nil || p == nil {
		return nil, ErrIndeterminateResult
	}
	var pt geom.Point
	switch t := p.(type) {
	case geom.Point:
		pt = t
	case *geom.Point:
		pt = *t
	}
	c, status, err := planar.ClosestPoint(g, pt)
	if err != nil {
		return nil, err
	}
	if status == planar.Indeterminate {
		return nil, ErrIndeterminateResult
	}
	return c, nil
}
