// Package source opens input datasets from a local directory or an S3
// bucket.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethpandaops/datas/pkg/config"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a dataset does not exist in the backend.
var ErrNotFound = errors.New("dataset not found")

// Reader provides read access to input dataset files stored in a backend.
type Reader interface {
	// Open returns a stream over the named dataset file. The caller closes it.
	// Returns an error wrapping ErrNotFound when the file does not exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Location describes where a dataset name resolves to, for logging.
	Location(name string) string
}

// New creates the Reader selected by the data configuration.
func New(log logrus.FieldLogger, cfg *config.DataConfig) (Reader, error) {
	switch cfg.Source {
	case config.SourceLocal, "":
		return NewLocalReader(log, &cfg.Local), nil
	case config.SourceS3:
		return NewS3Reader(log, &cfg.S3), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Source)
	}
}
