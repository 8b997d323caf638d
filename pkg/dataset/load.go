package dataset

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethpandaops/datas/pkg/source"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Format is an input file format.
type Format string

const (
	// FormatCSV is comma separated values.
	FormatCSV Format = "csv"
	// FormatXLSX is an Excel workbook; only the first sheet is read.
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the input format from a file name extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(name))
	}
}

// ReadSessions decodes a session dataset, choosing the format from name.
func ReadSessions(r io.Reader, name string) (*Sessions, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	if format == FormatXLSX {
		return ReadSessionsXLSX(r)
	}

	return ReadSessionsCSV(r)
}

// ReadStudents decodes a student dataset, choosing the format from name.
func ReadStudents(r io.Reader, name string) (*Students, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	if format == FormatXLSX {
		return ReadStudentsXLSX(r)
	}

	return ReadStudentsCSV(r)
}

// Loader reads datasets from a source and logs their schema warnings.
type Loader struct {
	log logrus.FieldLogger
	src source.Reader
}

// NewLoader creates a Loader over the given source.
func NewLoader(log logrus.FieldLogger, src source.Reader) *Loader {
	return &Loader{
		log: log.WithField("component", "loader"),
		src: src,
	}
}

// LoadSessions reads and decodes the named session dataset.
func (l *Loader) LoadSessions(ctx context.Context, name string) (*Sessions, error) {
	rc, err := l.src.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}

	defer func() { _ = rc.Close() }()

	sessions, err := ReadSessions(rc, name)
	if err != nil {
		return nil, fmt.Errorf("decoding sessions %s: %w", l.src.Location(name), err)
	}

	l.logLoaded("sessions", name, len(sessions.Records), sessions.Warnings)

	return sessions, nil
}

// LoadStudents reads and decodes the named student dataset.
func (l *Loader) LoadStudents(ctx context.Context, name string) (*Students, error) {
	rc, err := l.src.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading students: %w", err)
	}

	defer func() { _ = rc.Close() }()

	students, err := ReadStudents(rc, name)
	if err != nil {
		return nil, fmt.Errorf("decoding students %s: %w", l.src.Location(name), err)
	}

	l.logLoaded("students", name, len(students.Records), students.Warnings)

	return students, nil
}

// Location describes where a dataset name resolves to.
func (l *Loader) Location(name string) string {
	return l.src.Location(name)
}

// Datasets is a session and student dataset loaded together.
type Datasets struct {
	Sessions *Sessions
	Students *Students
	LoadedAt time.Time
}

// Load reads both datasets concurrently.
func (l *Loader) Load(ctx context.Context, sessionsName, studentsName string) (*Datasets, error) {
	out := &Datasets{}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sessions, err := l.LoadSessions(gCtx, sessionsName)
		if err != nil {
			return err
		}

		out.Sessions = sessions

		return nil
	})

	g.Go(func() error {
		students, err := l.LoadStudents(gCtx, studentsName)
		if err != nil {
			return err
		}

		out.Students = students

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.LoadedAt = time.Now().UTC()

	return out, nil
}

func (l *Loader) logLoaded(kind, name string, rows int, warnings []string) {
	log := l.log.WithFields(logrus.Fields{
		"dataset":  kind,
		"location": l.src.Location(name),
	})

	for _, w := range warnings {
		log.Warn(w)
	}

	log.WithField("rows", rows).Info("Loaded dataset")
}
