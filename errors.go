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
	"fmt"
	"strings"
)

var (
	// ErrInvalidGeometryType is returned when a collection holds, or is
	// declared to hold, a geometry type that an operation cannot use.
	ErrInvalidGeometryType = errors.New("conflate: invalid geometry type")

	// ErrInvalidInputLength is returned when paired inputs neither have
	// the same length nor can be broadcast from length 1.
	ErrInvalidInputLength = errors.New("conflate: invalid input length")

	// ErrDegenerateGeometry marks a geometry that has too few coordinates
	// to derive an envelope. Such geometries are skipped rather than
	// failing the operation.
	ErrDegenerateGeometry = errors.New("conflate: degenerate geometry")

	// ErrIndeterminateResult marks an element for which an exact
	// operation has no single answer. Such elements produce no value.
	ErrIndeterminateResult = errors.New("conflate: indeterminate result")

	// ErrInvalidParameter is returned for out of range scalar arguments.
	ErrInvalidParameter = errors.New("conflate: invalid parameter")
)

// GeometryTypeError describes a collection whose geometry type does not
// match what an operation requires. It wraps ErrInvalidGeometryType.
type GeometryTypeError struct {
	// Op is the operation that rejected the input.
	Op string

	// Position is the 1-based position of the offending geometry,
	// or 0 if the collection as a whole was rejected.
	Position int

	Want []Kind
	Have string
}

func (e *GeometryTypeError) Error() string {
	want := make([]string, len(e.Want))
	for i, k := range e.Want {
		want[i] = k.String()
	}
	if e.Position > 0 {
		return fmt.Sprintf("conflate: %s: geometry %d is %s, want %s",
			e.Op, e.Position, e.Have, strings.Join(want, " or "))
	}
	return fmt.Sprintf("conflate: %s: collection is %s, want %s",
		e.Op, e.Have, strings.Join(want, " or "))
}

// Unwrap returns ErrInvalidGeometryType.
func (e *GeometryTypeError) Unwrap() error { return ErrInvalidGeometryType }

// InputLengthError describes paired inputs of incompatible length.
// It wraps ErrInvalidInputLength.
type InputLengthError struct {
	Op         string
	Len1, Len2 int
}

func (e *InputLengthError) Error() string {
	return fmt.Sprintf("conflate: %s: input lengths %d and %d are not compatible", e.Op, e.Len1, e.Len2)
}

// Unwrap returns ErrInvalidInputLength.
func (e *InputLengthError) Unwrap() error { return ErrInvalidInputLength }

// broadcast returns the output length for paired inputs of length n1 and
// n2, where an input of length 1 is repeated to match the other.
func broadcast(op string, n1, n2 int) (int, error) {
	switch {
	case n1 == n2:
		return n1, nil
	case n1 == 1:
		return n2, nil
	case n2 == 1:
		return n1, nil
	}
	return 0, &InputLengthError{Op: op, Len1: n1, Len2: n2}
}

func checkParameter(op, name string, v float64) error {
	if !(v >= 0) {
		return fmt.Errorf("%w: %s: %s must be a non-negative number, have %g", ErrInvalidParameter, op, name, v)
	}
	return nil
}
