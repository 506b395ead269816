package ingest

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"
)

// WrapReader unwraps gzip for .csv.gz objects and passes .csv through. The
// caller keeps ownership of the underlying reader.
func WrapReader(r io.Reader, key string) (io.Reader, error) {
	if strings.HasSuffix(strings.ToLower(key), ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream %q: %w", key, err)
		}
		return gz, nil
	}
	return r, nil
}
