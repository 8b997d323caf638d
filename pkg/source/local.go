package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethpandaops/datas/pkg/config"
	"github.com/sirupsen/logrus"
)

// Compile-time interface check.
var _ Reader = (*localReader)(nil)

type localReader struct {
	log logrus.FieldLogger
	dir string
}

// NewLocalReader creates a Reader that resolves dataset names against a base
// directory. Absolute names are used as is.
func NewLocalReader(log logrus.FieldLogger, cfg *config.LocalSourceConfig) Reader {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}

	return &localReader{
		log: log.WithField("component", "local-source"),
		dir: dir,
	}
}

// Location returns the filesystem path of a dataset name.
func (r *localReader) Location(name string) string {
	if filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(r.dir, name)
}

// Open opens the dataset file for reading.
func (r *localReader) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := r.Location(name)

	f, err := os.Open(p) //nolint:gosec // trusted paths from config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("opening %s: %w", p, ErrNotFound)
		}

		return nil, fmt.Errorf("opening %s: %w", p, err)
	}

	r.log.WithField("path", p).Debug("Opened dataset")

	return f, nil
}
