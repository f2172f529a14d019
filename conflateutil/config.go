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
	"math"
	"os"
	"path/filepath"

	"github.com/spatialmodel/conflate"
)

// checkInput expands any environment variables in the input file path
// and makes sure that it is specified.
func checkInput(name, path string) (string, error) {
	path = os.ExpandEnv(path)
	if path == "" {
		return "", fmt.Errorf("conflateutil: you need to specify the %s input file (for example: --%s=roads.shp)", name, name)
	}
	return path, nil
}

// checkOutput makes sure that the output file is specified, has one of
// the given extensions, and can be written to. Environment variables
// are expanded.
func checkOutput(path string, exts ...string) (string, error) {
	path = os.ExpandEnv(path)
	if path == "" {
		return "", fmt.Errorf("conflateutil: you need to specify an output file (for example: --output=output%s)", exts[0])
	}
	if err := checkExtension(path, exts...); err != nil {
		return path, err
	}
	if IsBlob(path) {
		name, _, err := bucketKey(path)
		if err != nil {
			return path, err
		}
		b, err := OpenBucket(context.TODO(), name)
		if err != nil {
			return path, fmt.Errorf("conflateutil: checking output location: %v", err)
		}
		return path, b.Close()
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return path, fmt.Errorf("conflateutil: the output directory doesn't exist: %v", err)
	}
	return path, nil
}

// checkParameter makes sure that a distance or tolerance is a
// non-negative number.
func checkParameter(name string, v float64) error {
	if v < 0 || math.IsNaN(v) {
		return fmt.Errorf("%w: %s must be >= 0 but is %g", conflate.ErrInvalidParameter, name, v)
	}
	return nil
}
