package source_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/datas/pkg/config"
	"github.com/ethpandaops/datas/pkg/source"
)

func TestLocalReader_Open(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := logrus.New()

	t.Run("reads file relative to dir", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		content := []byte("student_id\n1\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "students.csv"), content, 0o644))

		reader := source.NewLocalReader(log, &config.LocalSourceConfig{Dir: dir})

		rc, err := reader.Open(ctx, "students.csv")
		require.NoError(t, err)

		defer func() { _ = rc.Close() }()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("absolute names ignore dir", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		abs := filepath.Join(dir, "sessions.csv")
		require.NoError(t, os.WriteFile(abs, []byte("x"), 0o644))

		reader := source.NewLocalReader(log, &config.LocalSourceConfig{Dir: "/does/not/exist"})
		assert.Equal(t, abs, reader.Location(abs))

		rc, err := reader.Open(ctx, abs)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
	})

	t.Run("missing file wraps ErrNotFound", func(t *testing.T) {
		t.Parallel()

		reader := source.NewLocalReader(log, &config.LocalSourceConfig{Dir: t.TempDir()})

		rc, err := reader.Open(ctx, "missing.csv")
		assert.Nil(t, rc)
		require.ErrorIs(t, err, source.ErrNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		reader := source.NewLocalReader(log, &config.LocalSourceConfig{Dir: t.TempDir()})

		_, err := reader.Open(cctx, "students.csv")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestS3Reader_Location(t *testing.T) {
	t.Parallel()

	log := logrus.New()

	tests := []struct {
		name   string
		prefix string
		file   string
		want   string
	}{
		{name: "no prefix", prefix: "", file: "sessions.csv", want: "s3://data/sessions.csv"},
		{name: "prefix", prefix: "district-7", file: "sessions.csv", want: "s3://data/district-7/sessions.csv"},
		{name: "slashes trimmed", prefix: "/district-7/", file: "/students.xlsx", want: "s3://data/district-7/students.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reader := source.NewS3Reader(log, &config.S3SourceConfig{
				S3Connection: config.S3Connection{Bucket: "data", Region: "us-east-1"},
				Prefix:       tt.prefix,
			})

			assert.Equal(t, tt.want, reader.Location(tt.file))
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	log := logrus.New()

	_, err := source.New(log, &config.DataConfig{Source: config.SourceLocal})
	require.NoError(t, err)

	_, err = source.New(log, &config.DataConfig{
		Source: config.SourceS3,
		S3:     config.S3SourceConfig{S3Connection: config.S3Connection{Bucket: "b"}},
	})
	require.NoError(t, err)

	_, err = source.New(log, &config.DataConfig{Source: "ftp"})
	assert.ErrorContains(t, err, "unknown data source")
}
