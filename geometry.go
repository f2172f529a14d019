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
	"strings"

	"github.com/ctessum/geom"
)

// Kind is a geometry type.
type Kind int

// These are the geometry types a Collection can hold.
const (
	Point Kind = iota + 1
	MultiPoint
	LineString
	MultiLineString
	Polygon
	MultiPolygon
)

var kindNames = map[Kind]string{
	Point:           "point",
	MultiPoint:      "multipoint",
	LineString:      "linestring",
	MultiLineString: "multilinestring",
	Polygon:         "polygon",
	MultiPolygon:    "multipolygon",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the Kind with the given name, ignoring case.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown geometry type %q", ErrInvalidGeometryType, s)
}

// KindOf returns the Kind of g. The second return value is false if g is
// nil or of a type that no Kind describes.
func KindOf(g geom.Geom) (Kind, bool) {
	switch g.(type) {
	case geom.Point, *geom.Point:
		return Point, true
	case geom.MultiPoint:
		return MultiPoint, true
	case geom.LineString:
		return LineString, true
	case geom.MultiLineString:
		return MultiLineString, true
	case geom.Polygon:
		return Polygon, true
	case geom.MultiPolygon:
		return MultiPolygon, true
	}
	return 0, false
}

func typeName(g geom.Geom) string {
	if k, ok := KindOf(g); ok {
		return k.String()
	}
	return fmt.Sprintf("%T", g)
}

// Collection is an ordered collection of geometries that all have the same
// Kind. A nil entry marks a missing geometry; missing geometries keep their
// position but take no part in any operation.
type Collection struct {
	Kind  Kind
	Geoms []geom.Geom
}

// NewCollection returns a Collection of the given kind holding geoms,
// or a *GeometryTypeError if any non-nil geometry is of another kind.
func NewCollection(kind Kind, geoms []geom.Geom) (*Collection, error) {
	c := &Collection{Kind: kind, Geoms: geoms}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// CollectionOf returns a Collection holding geoms, with its Kind taken
// from the first non-nil geometry. A collection with no geometries at all
// is given kind k, which may be 0 if the caller has no preference.
func CollectionOf(k Kind, geoms []geom.Geom) (*Collection, error) {
	for i, g := range geoms {
		if g == nil {
			continue
		}
		kk, ok := KindOf(g)
		if !ok {
			return nil, &GeometryTypeError{Op: "collection", Position: i + 1, Have: typeName(g), Want: allKinds()}
		}
		k = kk
		break
	}
	c := &Collection{Kind: k, Geoms: geoms}
	if k == 0 {
		return c, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func allKinds() []Kind {
	return []Kind{Point, MultiPoint, LineString, MultiLineString, Polygon, MultiPolygon}
}

// Len returns the number of positions in c, including missing geometries.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Geoms)
}

// Validate checks that every non-nil geometry in c matches c.Kind.
func (c *Collection) Validate() error {
	if c == nil {
		return &GeometryTypeError{Op: "collection", Have: "nil", Want: allKinds()}
	}
	if _, ok := kindNames[c.Kind]; !ok && !(c.Kind == 0 && c.present() == 0) {
		return &GeometryTypeError{Op: "collection", Have: c.Kind.String(), Want: allKinds()}
	}
	for i, g := range c.Geoms {
		if g == nil {
			continue
		}
		if k, ok := KindOf(g); !ok || k != c.Kind {
			return &GeometryTypeError{Op: "collection", Position: i + 1, Have: typeName(g), Want: []Kind{c.Kind}}
		}
	}
	return nil
}

// present returns the number of non-nil geometries.
func (c *Collection) present() int {
	var n int
	for _, g := range c.Geoms {
		if g != nil {
			n++
		}
	}
	return n
}

// require checks that c is valid and of one of the given kinds.
// Empty collections are accepted whatever their kind.
func (c *Collection) require(op string, kinds ...Kind) error {
	if err := c.Validate(); err != nil {
		if e, ok := err.(*GeometryTypeError); ok {
			e.Op = op
		}
		return err
	}
	if len(kinds) == 0 || c.present() == 0 {
		return nil
	}
	for _, k := range kinds {
		if c.Kind == k {
			return nil
		}
	}
	return &GeometryTypeError{Op: op, Have: c.Kind.String(), Want: kinds}
}

// lines returns the line strings that make up g, which must be a
// LineString or a MultiLineString.
func lines(g geom.Geom) []geom.LineString {
	switch t := g.(type) {
	case geom.LineString:
		return []geom.LineString{t}
	case geom.MultiLineString:
		return t
	}
	return nil
}
