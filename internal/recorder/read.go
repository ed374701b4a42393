package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// ReadSink returns the data rows of a sink file, header excluded.
// A missing file yields no rows.
func ReadSink(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open sink %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)
	var rows [][]string
	first := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read sink %s: %w", path, err)
		}
		if first {
			first = false
			if rec[0] == Header[0] {
				continue
			}
		}
		rows = append(rows, rec)
	}
}
