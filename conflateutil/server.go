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
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"runtime"
	"time"

	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/conflate"
	"github.com/spatialmodel/conflate/internal/hash"
)

// maxRequestSize is the largest request body the server will read.
const maxRequestSize = 256 << 20

// Server answers sparse predicate and network conflation requests over
// HTTP. Request and response bodies are JSON, with geometries in
// GeoJSON. Identical concurrent requests are computed once, and recent
// results are kept in memory.
type Server struct {
	e     *conflate.Engine
	cache *requestcache.Cache
	mux   *http.ServeMux

	Log logrus.FieldLogger
}

// NewServer returns a server that uses e for computation and keeps
// up to cacheSize results in memory.
func NewServer(e *conflate.Engine, cacheSize int) *Server {
	s := &Server{e: e, mux: http.NewServeMux(), Log: logrus.StandardLogger()}
	if e.Log != nil {
		s.Log = e.Log
	}
	s.cache = requestcache.NewCache(s.process, runtime.GOMAXPROCS(-1),
		requestcache.Deduplicate(), requestcache.Memory(cacheSize))
	s.mux.HandleFunc("/sparse", s.handle("sparse"))
	s.mux.HandleFunc("/merge", s.handle("merge"))
	s.mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "conflate v%s\n", conflate.Version)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// SparseRequest is the body of a request to /sparse.
type SparseRequest struct {
	Reference []*geojson.Geometry `json:"reference"`
	Query     []*geojson.Geometry `json:"query"`
	Predicate string              `json:"predicate"`
}

// SparseResponse is the body of a response from /sparse. Matches holds
// the 1-based query positions matching each reference geometry.
type SparseResponse struct {
	Matches [][]int `json:"matches"`
}

// MergeRequest is the body of a request to /merge.
type MergeRequest struct {
	Reference      []*geojson.Geometry `json:"reference"`
	Target         []*geojson.Geometry `json:"target"`
	Dist           float64             `json:"dist"`
	SlopeTolerance float64             `json:"slope_tolerance"`
}

// MergeResponse is the body of a response from /merge.
type MergeResponse struct {
	Matches []matchJSON `json:"matches"`
}

type request struct {
	op   string
	body []byte
}

// badRequest marks errors caused by the content of a request.
type badRequest struct{ error }

func (s *Server) handle(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "only POST requests are accepted", http.StatusMethodNotAllowed)
			return
		}
		body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		key := hash.Key(op, body)
		res, err := s.cache.NewRequest(r.Context(), request{op: op, body: body}, key).Result()
		if err == nil {
			err = res.(*response).err
		}
		fields := logrus.Fields{
			"path":     r.URL.Path,
			"addr":     r.RemoteAddr,
			"key":      key,
			"duration": time.Since(start),
		}
		if err != nil {
			status := http.StatusInternalServerError
			var br badRequest
			if errors.As(err, &br) {
				status = http.StatusBadRequest
			}
			s.Log.WithFields(fields).WithError(err).Warn("conflateutil: request failed")
			http.Error(w, err.Error(), status)
			return
		}
		s.Log.WithFields(fields).Info("conflateutil: request")
		w.Header().Set("Content-Type", "application/json")
		w.Write(res.(*response).body)
	}
}

// response is a cached result. Errors are part of the result so that
// requests that fail are cached and deduplicated like the rest.
type response struct {
	body []byte
	err  error
}

// process computes the JSON response to a request.
func (s *Server) process(ctx context.Context, payload interface{}) (interface{}, error) {
	r := payload.(request)
	var resp interface{}
	var err error
	switch r.op {
	case "sparse":
		resp, err = s.sparse(r.body)
	case "merge":
		resp, err = s.merge(r.body)
	default:
		err = fmt.Errorf("conflateutil: unknown operation %q", r.op)
	}
	if err != nil {
		if isInputError(err) {
			err = badRequest{err}
		}
		return &response{err: err}, nil
	}
	b, err := json.Marshal(resp)
	return &response{body: b, err: err}, nil
}

func isInputError(err error) bool {
	for _, e := range []error{conflate.ErrInvalidGeometryType, conflate.ErrInvalidInputLength,
		conflate.ErrInvalidParameter, conflate.ErrDegenerateGeometry} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func (s *Server) sparse(body []byte) (*SparseResponse, error) {
	var req SparseRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, badRequest{fmt.Errorf("conflateutil: decoding request: %v", err)}
	}
	if req.Predicate == "" {
		req.Predicate = conflate.Intersects.String()
	}
	pred, err := conflate.ParsePredicate(req.Predicate)
	if err != nil {
		return nil, err
	}
	ref, err := requestCollection("reference", req.Reference)
	if err != nil {
		return nil, err
	}
	q, err := requestCollection("query", req.Query)
	if err != nil {
		return nil, err
	}
	m, err := s.e.Sparse(ref, q, pred)
	if err != nil {
		return nil, err
	}
	return &SparseResponse{Matches: m}, nil
}

func (s *Server) merge(body []byte) (*MergeResponse, error) {
	var req MergeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, badRequest{fmt.Errorf("conflateutil: decoding request: %v", err)}
	}
	x, err := requestCollection("reference", req.Reference)
	if err != nil {
		return nil, err
	}
	y, err := requestCollection("target", req.Target)
	if err != nil {
		return nil, err
	}
	m, err := s.e.Merge(x, y, req.Dist, req.SlopeTolerance)
	if err != nil {
		return nil, err
	}
	return &MergeResponse{Matches: matchesJSON(m)}, nil
}

func requestCollection(name string, gs []*geojson.Geometry) (*conflate.Collection, error) {
	geoms, err := fromGeoJSON(gs)
	if err != nil {
		return nil, badRequest{fmt.Errorf("conflateutil: %s: %v", name, err)}
	}
	c, err := conflate.CollectionOf(0, geoms)
	if err != nil {
		return nil, fmt.Errorf("conflateutil: %s: %w", name, err)
	}
	return c, nil
}
