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
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// IsBlob returns whether the given path refers to blob storage,
// i.e., whether it starts with `gs://`, `s3://`, or `file://`.
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

func isHTTP(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// which must be in the format 'provider://name'. Only the host part of
// the name is used. The accepted providers are "file" for a local
// directory, "gs" for Google Cloud Storage, and "s3" for AWS S3.
// For "file", the host is the bucket directory, so file:///tmp/x is not
// supported; use a path relative to the working directory instead.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("conflateutil: opening bucket: %v", err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.OpenBucket(u.Hostname(), nil)
	case "gs":
		creds, err := gcp.DefaultCredentials(ctx)
		if err != nil {
			return nil, err
		}
		c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
		return gcsblob.OpenBucket(ctx, c, u.Hostname(), nil)
	case "s3":
		// Credentials come from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-2"
		}
		s, err := session.NewSession(&aws.Config{
			Region:      aws.String(region),
			Credentials: credentials.NewEnvCredentials(),
		})
		if err != nil {
			return nil, err
		}
		return s3blob.OpenBucket(ctx, s, u.Hostname(), nil)
	default:
		return nil, fmt.Errorf("conflateutil: invalid storage provider %q", u.Scheme)
	}
}

// bucketKey splits a blob path into the bucket name and the key
// within the bucket.
func bucketKey(path string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", err
	}
	return u.Scheme + "://" + u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// expandShp returns the given file plus its associated .dbf, .shx and
// .prj files if it has the .shp extension, and the file alone otherwise.
func expandShp(filename string) []string {
	o := []string{filename}
	if filepath.Ext(filename) != ".shp" {
		return o
	}
	base := strings.TrimSuffix(filename, ".shp")
	for _, ext := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, base+ext)
	}
	return o
}

// fetcher copies remote input files to a local temporary directory.
type fetcher struct {
	dir string
	log logrus.FieldLogger

	// maxElapsed, if > 0, limits the time spent retrying an HTTP
	// download.
	maxElapsed time.Duration
}

// localPath returns a local path holding the contents of path. Local
// paths are returned unchanged. HTTP and blob paths are downloaded,
// along with the support files of shapefiles.
func (f *fetcher) localPath(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	var get func(ctx context.Context, src string, w io.Writer) error
	switch {
	case isHTTP(path):
		get = f.getHTTP
	case IsBlob(path):
		get = getBlob
	default:
		return path, nil
	}
	if f.dir == "" {
		var err error
		if f.dir, err = ioutil.TempDir("", "conflate"); err != nil {
			return "", fmt.Errorf("conflateutil: creating download directory: %v", err)
		}
	}
	files := expandShp(path)
	for i, src := range files {
		dst := filepath.Join(f.dir, filepath.Base(src))
		w, err := os.Create(dst)
		if err != nil {
			return "", fmt.Errorf("conflateutil: creating file for download: %v", err)
		}
		err = get(ctx, src, w)
		w.Close()
		if err != nil {
			if i > 0 && strings.HasSuffix(src, ".prj") {
				// Shapefiles without a projection can still be read.
				os.Remove(dst)
				f.log.WithField("file", src).Debug("conflateutil: no projection file")
				continue
			}
			return "", fmt.Errorf("conflateutil: downloading %s: %v", src, err)
		}
		f.log.WithFields(logrus.Fields{"src": src, "dst": dst}).Debug("conflateutil: downloaded")
	}
	return filepath.Join(f.dir, filepath.Base(files[0])), nil
}

// getHTTP downloads src, retrying with exponential backoff on
// connection errors and server errors.
func (f *fetcher) getHTTP(ctx context.Context, src string, w io.Writer) error {
	b := backoff.NewExponentialBackOff()
	if f.maxElapsed > 0 {
		b.MaxElapsedTime = f.maxElapsed
	}
	var body []byte
	err := backoff.RetryNotify(
		func() error {
			req, err := http.NewRequest(http.MethodGet, src, nil)
			if err != nil {
				return backoff.Permanent(err)
			}
			resp, err := http.DefaultClient.Do(req.WithContext(ctx))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			switch {
			case resp.StatusCode >= 500:
				return fmt.Errorf("%s: %s", src, resp.Status)
			case resp.StatusCode != http.StatusOK:
				return backoff.Permanent(fmt.Errorf("%s: %s", src, resp.Status))
			}
			body, err = ioutil.ReadAll(resp.Body)
			return err
		},
		backoff.WithContext(b, ctx),
		func(err error, d time.Duration) {
			f.log.WithField("url", src).Warnf("%v: retrying in %v", err, d)
		},
	)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func getBlob(ctx context.Context, src string, w io.Writer) error {
	name, key, err := bucketKey(src)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, name)
	if err != nil {
		return err
	}
	defer bucket.Close()
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(w, r)
	return err
}

// uploader writes output destined for blob storage to a temporary
// file first, and uploads it when upload is called.
type uploader struct {
	// files holds pairs of local file path and blob storage path.
	files [][2]string
	dir   string
}

// localPath returns the path that output for path should be written
// to. For blob paths, this is a temporary file that will be uploaded
// by upload.
func (u *uploader) localPath(path string) (string, error) {
	if !IsBlob(path) {
		return path, nil
	}
	if u.dir == "" {
		var err error
		if u.dir, err = ioutil.TempDir("", "conflate"); err != nil {
			return "", fmt.Errorf("conflateutil: creating upload directory: %v", err)
		}
	}
	local := filepath.Join(u.dir, filepath.Base(path))
	u.files = append(u.files, [2]string{local, path})
	return local, nil
}

// upload copies every pending file to blob storage.
func (u *uploader) upload(ctx context.Context) error {
	for _, files := range u.files {
		if err := putBlob(ctx, files[0], files[1]); err != nil {
			return fmt.Errorf("conflateutil: uploading %s to %s: %v", files[0], files[1], err)
		}
	}
	u.files = nil
	return nil
}

func putBlob(ctx context.Context, src, dst string) error {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	name, key, err := bucketKey(dst)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, name)
	if err != nil {
		return err
	}
	defer bucket.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
