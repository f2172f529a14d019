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
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/conflate"
)

func run(t *testing.T, args ...string) string {
	var out bytes.Buffer
	Root.SetOutput(&out)
	Root.SetArgs(args)
	if err := Root.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestVersion(t *testing.T) {
	if have := run(t, "version"); !strings.Contains(have, conflate.Version) {
		t.Errorf("want version %s but have %q", conflate.Version, have)
	}
}

func TestSparseCmd(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	ref := filepath.Join(dir, "zones.geojson")
	writeFile(t, ref, `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}},
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[20,20],[30,20],[30,30],[20,30],[20,20]]]}}]}`)
	query := filepath.Join(dir, "points.geojson")
	writeFile(t, query, `[{"type":"Point","coordinates":[25,25]},{"type":"Point","coordinates":[5,5]},{"type":"Point","coordinates":[1,1]}]`)
	output := filepath.Join(dir, "out.csv")

	run(t, "sparse", "--reference="+ref, "--query="+query, "--predicate=contains", "--output="+output)

	want := [][]string{{"reference", "query"}, {"1", "2"}, {"1", "3"}, {"2", "1"}}
	if have := readCSV(t, output); !reflect.DeepEqual(want, have) {
		t.Errorf("want %v but have %v", want, have)
	}
}

func TestMergeCmd(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	ref := filepath.Join(dir, "ref.geojson")
	writeFile(t, ref, `[{"type":"LineString","coordinates":[[0,0],[10,0]]},{"type":"LineString","coordinates":[[0,5],[0,15]]}]`)
	target := filepath.Join(dir, "target.geojson")
	writeFile(t, target, `[{"type":"LineString","coordinates":[[2,0.1],[8,0.1]]},{"type":"LineString","coordinates":[[50,50],[60,50]]}]`)
	output := filepath.Join(dir, "out.json")

	run(t, "merge", "--reference="+ref, "--target="+target, "--dist=1", "--slopetolerance=0.1", "--output="+output)

	b, err := ioutil.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	var have []matchJSON
	if err := json.Unmarshal(b, &have); err != nil {
		t.Fatal(err)
	}
	if want := []matchJSON{{I: 1, J: 1, SharedLen: 6}}; !reflect.DeepEqual(want, have) {
		t.Errorf("want %v but have %v", want, have)
	}
}

func TestDistanceAndClosestCmd(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	ref := filepath.Join(dir, "ref.geojson")
	writeFile(t, ref, `[{"type":"LineString","coordinates":[[0,0],[10,0]]},{"type":"LineString","coordinates":[[0,0],[0,10]]}]`)
	query := filepath.Join(dir, "points.geojson")
	writeFile(t, query, `[{"type":"Point","coordinates":[5,5]},{"type":"Point","coordinates":[3,4]}]`)

	output := filepath.Join(dir, "distance.csv")
	run(t, "distance", "--reference="+ref, "--query="+query, "--output="+output)
	want := [][]string{{"k", "distance"}, {"1", "5"}, {"2", "3"}}
	if have := readCSV(t, output); !reflect.DeepEqual(want, have) {
		t.Errorf("want %v but have %v", want, have)
	}

	output = filepath.Join(dir, "closest.geojson")
	run(t, "closest", "--reference="+ref, "--query="+query, "--output="+output)
	b, err := ioutil.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	geoms, err := decodeGeoJSON(b)
	if err != nil {
		t.Fatal(err)
	}
	c, err := conflate.CollectionOf(0, geoms)
	if err != nil {
		t.Fatal(err)
	}
	if c.Kind != conflate.Point || c.Len() != 2 {
		t.Fatalf("have %s", b)
	}
	if s := string(b); !strings.Contains(s, `"coordinates":[5,0]`) || !strings.Contains(s, `"coordinates":[0,4]`) {
		t.Errorf("have %s", s)
	}
}

func TestCheckErrors(t *testing.T) {
	if _, err := checkInput("reference", ""); err == nil {
		t.Error("want an error for a missing input")
	}
	if _, err := checkOutput("out.shp", tableExtensions...); err == nil {
		t.Error("want an error for an unsupported output type")
	}
	if _, err := checkOutput("/does/not/exist/out.csv", tableExtensions...); err == nil {
		t.Error("want an error for a missing output directory")
	}
	os.Setenv("CONFLATE_TEST_DIR", ".")
	defer os.Unsetenv("CONFLATE_TEST_DIR")
	if have, err := checkOutput("${CONFLATE_TEST_DIR}/out.csv", tableExtensions...); err != nil || have != "./out.csv" {
		t.Errorf("want ./out.csv but have %s, %v", have, err)
	}
	if err := checkParameter("dist", -1); err == nil {
		t.Error("want an error for a negative distance")
	}
}

func TestConfigCmd(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	cfg := filepath.Join(dir, "conflate.toml")
	writeFile(t, cfg, "addr = \":9999\"\ncachesize = 7\n")

	out := run(t, "config", "--config="+cfg)
	Cfg.Set("config", "")

	var have map[string]interface{}
	if _, err := toml.Decode(out, &have); err != nil {
		t.Fatalf("%v: %s", err, out)
	}
	if have["addr"] != ":9999" {
		t.Errorf("want addr :9999 but have %v", have["addr"])
	}
	if have["cachesize"] != int64(7) {
		t.Errorf("want cachesize 7 but have %v (%T)", have["cachesize"], have["cachesize"])
	}
	if _, ok := have["slopetolerance"]; !ok {
		t.Errorf("missing slopetolerance in %s", out)
	}
}
