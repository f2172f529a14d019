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

package conflateutil

import (
	"context"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/conflate"
)

// job holds the state shared by the steps of one command.
type job struct {
	e    *conflate.Engine
	read *reader
	up   uploader
	log  logrus.FieldLogger
}

func newJob(e *conflate.Engine, projection string) (*job, error) {
	log := e.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	r, err := newReader(projection, log)
	if err != nil {
		return nil, err
	}
	return &job{e: e, read: r, log: log}, nil
}

// inputs reads the two input collections.
func (j *job) inputs(ctx context.Context, x, y string) (*conflate.Collection, *conflate.Collection, error) {
	cx, err := j.read.collection(ctx, x)
	if err != nil {
		return nil, nil, err
	}
	cy, err := j.read.collection(ctx, y)
	if err != nil {
		return nil, nil, err
	}
	return cx, cy, nil
}

func (j *job) writeTable(ctx context.Context, output string, t *table) error {
	local, err := j.up.localPath(output)
	if err != nil {
		return err
	}
	if err := t.write(local); err != nil {
		return err
	}
	return j.up.upload(ctx)
}

func (j *job) writeFile(ctx context.Context, output string, b []byte) error {
	local, err := j.up.localPath(output)
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(local, b, 0644); err != nil {
		return fmt.Errorf("conflateutil: writing %s: %v", output, err)
	}
	return j.up.upload(ctx)
}

func (j *job) done(op, output string, start time.Time) {
	j.log.WithFields(logrus.Fields{
		"output":   output,
		"duration": time.Since(start),
	}).Infof("conflateutil: %s finished", op)
}

// Sparse finds, for each geometry in the reference file, the geometries
// in the query file for which predicate holds, and writes the pairs to
// output. Input files can be shapefiles or GeoJSON, local or remote.
// If projection is not empty, inputs are projected to it first.
func Sparse(ctx context.Context, e *conflate.Engine, reference, query, predicate, output, projection string) error {
	start := time.Now()
	pred, err := conflate.ParsePredicate(predicate)
	if err != nil {
		return err
	}
	j, err := newJob(e, projection)
	if err != nil {
		return err
	}
	ref, q, err := j.inputs(ctx, reference, query)
	if err != nil {
		return err
	}
	m, err := e.Sparse(ref, q, pred)
	if err != nil {
		return err
	}
	if err := j.writeTable(ctx, output, sparseTable(m)); err != nil {
		return err
	}
	j.done("sparse", output, start)
	return nil
}

// Merge conflates the target network onto the reference network and
// writes the table of matched line pairs to output.
func Merge(ctx context.Context, e *conflate.Engine, reference, target string, dist, slopeTolerance float64, output, projection string) error {
	start := time.Now()
	if err := checkParameter("dist", dist); err != nil {
		return err
	}
	if err := checkParameter("slopetolerance", slopeTolerance); err != nil {
		return err
	}
	j, err := newJob(e, projection)
	if err != nil {
		return err
	}
	x, y, err := j.inputs(ctx, reference, target)
	if err != nil {
		return err
	}
	m, err := e.Merge(x, y, dist, slopeTolerance)
	if err != nil {
		return err
	}
	if err := j.writeTable(ctx, output, matchTable(m)); err != nil {
		return err
	}
	j.done("merge", output, start)
	return nil
}

// Distance writes the distance between the geometries at each position
// of the reference and query files to output.
func Distance(ctx context.Context, e *conflate.Engine, reference, query, output, projection string) error {
	start := time.Now()
	j, err := newJob(e, projection)
	if err != nil {
		return err
	}
	x, y, err := j.inputs(ctx, reference, query)
	if err != nil {
		return err
	}
	d, err := e.DistancePairwise(x, y)
	if err != nil {
		return err
	}
	if err := j.writeTable(ctx, output, distanceTable(d)); err != nil {
		return err
	}
	j.done("distance", output, start)
	return nil
}

// Closest writes, as GeoJSON, the point of each reference geometry
// that is closest to the query point at the same position.
func Closest(ctx context.Context, e *conflate.Engine, reference, query, output, projection string) error {
	start := time.Now()
	j, err := newJob(e, projection)
	if err != nil {
		return err
	}
	x, p, err := j.inputs(ctx, reference, query)
	if err != nil {
		return err
	}
	c, err := e.ClosestPoints(x, p)
	if err != nil {
		return err
	}
	b, err := encodeGeoJSON(c)
	if err != nil {
		return err
	}
	if err := j.writeFile(ctx, output, b); err != nil {
		return err
	}
	j.done("closest", output, start)
	return nil
}
