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

// Package hash creates cache keys for requests.
package hash

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// Key returns a key for a request for operation op with the given
// parameters. Requests with the same operation and equal parameters
// have the same key.
func Key(op string, params ...interface{}) string {
	h := fnv.New128a()
	fmt.Fprintf(h, "%s\x00", op)
	for _, p := range params {
		write(h, p)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s-%x", op, h.Sum(nil))
}

func write(h hash.Hash, p interface{}) {
	switch t := p.(type) {
	case []byte:
		h.Write(t)
		return
	case string:
		h.Write([]byte(t))
		return
	case fmt.Stringer:
		h.Write([]byte(t.String()))
		return
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err == nil {
		h.Write(buf.Bytes())
		return
	}
	// gob can't encode unregistered interface values, such as
	// geometries, so use spew instead.
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fprintf(h, "%#v", p)
}

