package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// readCSV returns the header row and the data rows of a CSV document.
// An empty document yields a nil header.
func readCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	names, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}

		return nil, nil, fmt.Errorf("reading csv header: %w", err)
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading csv rows: %w", err)
	}

	return names, rows, nil
}

// ReadSessionsCSV decodes a session dataset from CSV.
func ReadSessionsCSV(r io.Reader) (*Sessions, error) {
	names, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	if names == nil {
		return emptySessions(), nil
	}

	return decodeSessions(names, rows), nil
}

// ReadStudentsCSV decodes a student dataset from CSV.
func ReadStudentsCSV(r io.Reader) (*Students, error) {
	names, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	if names == nil {
		return emptyStudents(), nil
	}

	return decodeStudents(names, rows), nil
}

func emptySessions() *Sessions {
	return &Sessions{
		Records:  []SessionRecord{},
		Columns:  ColumnSet{},
		Warnings: []string{"session file is empty"},
	}
}

func emptyStudents() *Students {
	return &Students{
		Records:  []StudentRecord{},
		Columns:  ColumnSet{},
		Warnings: []string{"student file is empty"},
	}
}
