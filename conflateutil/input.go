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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/conflate"
)

// wgs84 is the spatial reference of GeoJSON coordinates.
const wgs84 = "+proj=longlat +datum=WGS84 +no_defs"

// reader loads geometry collections from local or remote files.
type reader struct {
	fetch fetcher

	// sr, if not nil, is the spatial reference that inputs are
	// projected to.
	sr *proj.SR
}

func newReader(projection string, log logrus.FieldLogger) (*reader, error) {
	r := &reader{fetch: fetcher{log: log}}
	if projection != "" {
		var err error
		r.sr, err = proj.Parse(projection)
		if err != nil {
			return nil, fmt.Errorf("conflateutil: parsing projection: %v", err)
		}
	}
	return r, nil
}

// collection reads the geometries in the shapefile or GeoJSON file at
// path and returns them in file order.
func (r *reader) collection(ctx context.Context, path string) (*conflate.Collection, error) {
	local, err := r.fetch.localPath(ctx, path)
	if err != nil {
		return nil, err
	}
	var geoms []geom.Geom
	switch strings.ToLower(filepath.Ext(local)) {
	case ".shp":
		geoms, err = r.readShp(local)
	case ".geojson", ".json":
		var b []byte
		b, err = ioutil.ReadFile(local)
		if err != nil {
			return nil, fmt.Errorf("conflateutil: reading %s: %v", path, err)
		}
		geoms, err = decodeGeoJSON(b)
		if err == nil && r.sr != nil {
			geoms, err = r.project(geoms, wgs84)
		}
	default:
		return nil, fmt.Errorf("conflateutil: unsupported input file type %q; use .shp, .geojson or .json", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("conflateutil: reading %s: %v", path, err)
	}
	c, err := conflate.CollectionOf(0, geoms)
	if err != nil {
		return nil, fmt.Errorf("conflateutil: reading %s: %v", path, err)
	}
	r.fetch.log.WithFields(logrus.Fields{
		"file":       path,
		"geometries": c.Len(),
		"type":       c.Kind,
	}).Info("conflateutil: read input")
	return c, nil
}

func (r *reader) readShp(path string) ([]geom.Geom, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	var t proj.Transformer
	if r.sr != nil {
		src, err := d.SR()
		if err != nil {
			return nil, fmt.Errorf("reading projection: %v", err)
		}
		if t, err = src.NewTransform(r.sr); err != nil {
			return nil, err
		}
	}
	var geoms []geom.Geom
	for {
		g, _, more := d.DecodeRowFields()
		if !more {
			break
		}
		if g != nil && t != nil {
			if g, err = g.Transform(t); err != nil {
				return nil, err
			}
		}
		geoms = append(geoms, g)
	}
	if err := d.Error(); err != nil {
		return nil, err
	}
	return geoms, nil
}

func (r *reader) project(geoms []geom.Geom, from string) ([]geom.Geom, error) {
	src, err := proj.Parse(from)
	if err != nil {
		return nil, err
	}
	t, err := src.NewTransform(r.sr)
	if err != nil {
		return nil, err
	}
	for i, g := range geoms {
		if g == nil {
			continue
		}
		if geoms[i], err = g.Transform(t); err != nil {
			return nil, fmt.Errorf("geometry %d: %v", i+1, err)
		}
	}
	return geoms, nil
}

// decodeGeoJSON reads a FeatureCollection, a single Feature or geometry,
// or a JSON array of geometries. Null geometries are kept as missing
// values.
func decodeGeoJSON(b []byte) ([]geom.Geom, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var gs []*geojson.Geometry
		if err := json.Unmarshal(b, &gs); err != nil {
			return nil, err
		}
		return fromGeoJSON(gs)
	}
	var doc struct {
		Type       string              `json:"type"`
		Features   []feature           `json:"features"`
		Geometry   *geojson.Geometry   `json:"geometry"`
		Geometries []*geojson.Geometry `json:"geometries"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	switch doc.Type {
	case "FeatureCollection":
		gs := make([]*geojson.Geometry, len(doc.Features))
		for i, f := range doc.Features {
			gs[i] = f.Geometry
		}
		return fromGeoJSON(gs)
	case "Feature":
		return fromGeoJSON([]*geojson.Geometry{doc.Geometry})
	case "GeometryCollection":
		return fromGeoJSON(doc.Geometries)
	}
	var g geojson.Geometry
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, err
	}
	return fromGeoJSON([]*geojson.Geometry{&g})
}

type feature struct {
	Type       string                 `json:"type"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

func fromGeoJSON(gs []*geojson.Geometry) ([]geom.Geom, error) {
	out := make([]geom.Geom, len(gs))
	for i, g := range gs {
		if g == nil {
			continue
		}
		var err error
		if out[i], err = decodeGeometry(g); err != nil {
			return nil, fmt.Errorf("geometry %d: %v", i+1, err)
		}
	}
	return out, nil
}

// decodeGeometry converts g, building multi-part geometries from their
// parts.
func decodeGeometry(g *geojson.Geometry) (geom.Geom, error) {
	var part string
	switch g.Type {
	case "MultiPoint":
		part = "Point"
	case "MultiLineString":
		part = "LineString"
	case "MultiPolygon":
		part = "Polygon"
	default:
		return geojson.FromGeoJSON(g)
	}
	coords, ok := g.Coordinates.([]interface{})
	if !ok {
		return nil, geojson.InvalidGeometryError{}
	}
	var parts []geom.Geom
	for _, c := range coords {
		p, err := geojson.FromGeoJSON(&geojson.Geometry{Type: part, Coordinates: c})
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	switch g.Type {
	case "MultiPoint":
		mp := make(geom.MultiPoint, len(parts))
		for i, p := range parts {
			mp[i] = p.(geom.Point)
		}
		return mp, nil
	case "MultiLineString":
		ml := make(geom.MultiLineString, len(parts))
		for i, p := range parts {
			ml[i] = p.(geom.LineString)
		}
		return ml, nil
	default:
		mp := make(geom.MultiPolygon, len(parts))
		for i, p := range parts {
			mp[i] = p.(geom.Polygon)
		}
		return mp, nil
	}
}

// encodeGeoJSON writes c as a FeatureCollection with one feature per
// position, with null geometries for missing values.
func encodeGeoJSON(c *conflate.Collection) ([]byte, error) {
	doc := struct {
		Type     string    `json:"type"`
		Features []feature `json:"features"`
	}{Type: "FeatureCollection", Features: make([]feature, c.Len())}
	for i, g := range c.Geoms {
		doc.Features[i] = feature{Type: "Feature", Properties: map[string]interface{}{"position": i + 1}}
		if g == nil {
			continue
		}
		gj, err := geojson.ToGeoJSON(g)
		if err != nil {
			return nil, fmt.Errorf("conflateutil: encoding geometry %d: %v", i+1, err)
		}
		doc.Features[i].Geometry = gj
	}
	return json.Marshal(doc)
}
