package dataset

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// readXLSX returns the header row and data rows of the first worksheet.
func readXLSX(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("opening workbook: %w", err)
	}

	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	if len(rows) == 0 {
		return nil, nil, nil
	}

	return rows[0], rows[1:], nil
}

// ReadSessionsXLSX decodes a session dataset from the first sheet of a
// workbook.
func ReadSessionsXLSX(r io.Reader) (*Sessions, error) {
	names, rows, err := readXLSX(r)
	if err != nil {
		return nil, err
	}

	if names == nil {
		return emptySessions(), nil
	}

	return decodeSessions(names, rows), nil
}

// ReadStudentsXLSX decodes a student dataset from the first sheet of a
// workbook.
func ReadStudentsXLSX(r io.Reader) (*Students, error) {
	names, rows, err := readXLSX(r)
	if err != nil {
		return nil, err
	}

	if names == nil {
		return emptyStudents(), nil
	}

	return decodeStudents(names, rows), nil
}
