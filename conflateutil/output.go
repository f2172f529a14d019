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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spatialmodel/conflate"
	"github.com/spf13/cast"
	"github.com/tealeg/xlsx"
)

// table is a result table that can be written as CSV, JSON or XLSX.
type table struct {
	name    string
	columns []string
	rows    [][]interface{}

	// json is the value written for JSON output.
	json interface{}
}

// tableExtensions are the supported output file types for tables.
var tableExtensions = []string{".csv", ".json", ".xlsx"}

func (t *table) write(path string) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = t.writeCSV(path)
	case ".json":
		var b []byte
		if b, err = json.Marshal(t.json); err == nil {
			err = ioutil.WriteFile(path, b, 0644)
		}
	case ".xlsx":
		err = t.writeXLSX(path)
	default:
		err = fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("conflateutil: writing %s: %v", path, err)
	}
	return nil
}

// cellString formats v for CSV output. NaN values are left empty.
func cellString(v interface{}) string {
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return ""
	}
	return cast.ToString(v)
}

func (t *table) writeCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write(t.columns)
	rec := make([]string, len(t.columns))
	for _, row := range t.rows {
		for i, v := range row {
			rec[i] = cellString(v)
		}
		w.Write(rec)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (t *table) writeXLSX(path string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(t.name)
	if err != nil {
		return err
	}
	header := sheet.AddRow()
	for _, c := range t.columns {
		header.AddCell().SetString(c)
	}
	for _, row := range t.rows {
		r := sheet.AddRow()
		for _, v := range row {
			cell := r.AddCell()
			switch x := v.(type) {
			case int:
				cell.SetInt(x)
			case float64:
				if !math.IsNaN(x) {
					cell.SetFloat(x)
				}
			default:
				cell.SetString(cast.ToString(x))
			}
		}
	}
	return file.Save(path)
}

// sparseTable holds one row per matching pair of 1-based reference and
// query positions. The JSON form is the list of query positions for
// each reference position.
func sparseTable(m [][]int) *table {
	t := &table{name: "sparse", columns: []string{"reference", "query"}, json: m}
	for i, row := range m {
		for _, j := range row {
			t.rows = append(t.rows, []interface{}{i + 1, j})
		}
	}
	return t
}

type matchJSON struct {
	I         int     `json:"i"`
	J         int     `json:"j"`
	SharedLen float64 `json:"shared_len"`
}

func matchesJSON(m conflate.Matches) []matchJSON {
	out := make([]matchJSON, len(m))
	for k, r := range m {
		out[k] = matchJSON{I: r.I, J: r.J, SharedLen: r.SharedLen}
	}
	return out
}

func matchTable(m conflate.Matches) *table {
	t := &table{name: "merge", columns: []string{"i", "j", "shared_len"}, json: matchesJSON(m)}
	for _, r := range m {
		t.rows = append(t.rows, []interface{}{r.I, r.J, r.SharedLen})
	}
	return t
}

// distanceTable holds the distance at each 1-based position. Missing
// distances are null in JSON output.
func distanceTable(d []float64) *table {
	js := make([]*float64, len(d))
	t := &table{name: "distance", columns: []string{"k", "distance"}, json: js}
	for k, v := range d {
		if !math.IsNaN(v) {
			js[k] = &d[k]
		}
		t.rows = append(t.rows, []interface{}{k + 1, v})
	}
	return t
}

// checkExtension returns an error if path does not have one of the
// given extensions.
func checkExtension(path string, exts ...string) error {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return nil
		}
	}
	return fmt.Errorf("conflateutil: output file %q must have one of the extensions %v", path, exts)
}
