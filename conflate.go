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

// Package conflate indexes collections of planar geometries and matches
// them against each other. It answers sparse intersects, contains and
// within queries between two collections, and conflates two line networks
// by matching segments that lie within a distance and slope tolerance of
// each other, accumulating the length they share.
package conflate

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.3.0"

// Engine runs spatial queries. The zero value is ready to use.
type Engine struct {
	// Procs is the number of concurrent workers used when scanning
	// a collection. If it is < 1, runtime.GOMAXPROCS(0) is used.
	Procs int

	// Log receives progress information. If it is nil,
	// logrus.StandardLogger() is used.
	Log logrus.FieldLogger
}

func (e *Engine) nprocs() int {
	if e == nil || e.Procs < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return e.Procs
}

func (e *Engine) log() logrus.FieldLogger {
	if e == nil || e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// parallel calls f(procNum, i) for every i in [0, n), spreading the work
// across the engine's workers, and returns when all calls have finished.
func (e *Engine) parallel(n int, f func(procNum, i int)) {
	nprocs := e.nprocs()
	if nprocs > n {
		nprocs = n
	}
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for ii := pp; ii < n; ii += nprocs {
				f(pp, ii)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

var defaultEngine Engine

// Sparse evaluates pred between reference and query using a default
// Engine. See Engine.Sparse.
func Sparse(reference, query *Collection, pred Predicate) ([][]int, error) {
	return defaultEngine.Sparse(reference, query, pred)
}

// Merge conflates the line networks x and y using a default Engine.
// See Engine.Merge.
func Merge(x, y *Collection, dist, slopeTolerance float64) (Matches, error) {
	return defaultEngine.Merge(x, y, dist, slopeTolerance)
}
