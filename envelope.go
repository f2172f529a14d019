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

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/conflate/index"
)

// Cached holds a geometry together with its envelope, which is computed
// once when the Cached is created.
type Cached struct {
	geom.Geom
	bounds geom.Bounds
}

// NewCached computes the envelope of g. It returns an error wrapping
// ErrDegenerateGeometry if g is nil, has no coordinates, or has
// coordinates that are not numbers.
func NewCached(g geom.Geom) (*Cached, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: missing geometry", ErrDegenerateGeometry)
	}
	b := g.Bounds()
	if b == nil || b.Empty() {
		return nil, fmt.Errorf("%w: %s has no coordinates", ErrDegenerateGeometry, typeName(g))
	}
	if math.IsNaN(b.Min.X) || math.IsNaN(b.Min.Y) || math.IsNaN(b.Max.X) || math.IsNaN(b.Max.Y) {
		return nil, fmt.Errorf("%w: %s has NaN coordinates", ErrDegenerateGeometry, typeName(g))
	}
	return &Cached{Geom: g, bounds: *b}, nil
}

// Bounds returns the cached envelope. The result must not be modified.
func (c *Cached) Bounds() *geom.Bounds { return &c.bounds }

// geomIndex is a spatial index over the geometries of a collection. Entry
// positions in the tree are positions in the collection.
type geomIndex struct {
	cached []*Cached
	tree   *index.Tree
}

// cacheCollection computes the envelopes of the geometries in c. Missing
// and degenerate geometries are left as nil entries.
func cacheCollection(c *Collection, log logrus.FieldLogger, name string) []*Cached {
	out := make([]*Cached, len(c.Geoms))
	var skipped int
	for i, g := range c.Geoms {
		if g == nil {
			continue
		}
		cg, err := NewCached(g)
		if err != nil {
			skipped++
			log.WithFields(logrus.Fields{
				"collection": name,
				"position":   i + 1,
			}).Debugf("conflate: skipping geometry: %v", err)
			continue
		}
		out[i] = cg
	}
	if skipped > 0 {
		log.WithFields(logrus.Fields{
			"collection": name,
			"skipped":    skipped,
		}).Info("conflate: skipped degenerate geometries")
	}
	return out
}

func newGeomIndex(c *Collection, log logrus.FieldLogger, name string) *geomIndex {
	cached := cacheCollection(c, log, name)
	b := make([]*geom.Bounds, len(cached))
	for i, cg := range cached {
		if cg != nil {
			b[i] = cg.Bounds()
		}
	}
	idx := &geomIndex{cached: cached, tree: index.New(b)}
	log.WithFields(logrus.Fields{
		"collection": name,
		"entries":    idx.tree.Len(),
	}).Debug("conflate: built spatial index")
	return idx
}
