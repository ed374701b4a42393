// Package input loads the work list from a delimited file.
package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

// Columns names the header fields holding the URL and expected title.
type Columns struct {
	URL   string
	Title string
}

// DefaultColumns matches the export format of the article API.
var DefaultColumns = Columns{URL: "article_link", Title: "title"}

// Result is the parsed work list.
type Result struct {
	Items []verify.WorkItem
	// Skipped counts rows missing a URL or a title.
	Skipped int
}

// ReadFile parses the file at path.
func ReadFile(path string, cols Columns) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open input %s: %w", path, err)
	}
	defer f.Close()

	res, err := Read(f, cols)
	if err != nil {
		return Result{}, fmt.Errorf("read input %s: %w", path, err)
	}
	return res, nil
}

// Read parses rows from r. Index is the position among accepted rows.
func Read(r io.Reader, cols Columns) (Result, error) {
	if cols.URL == "" {
		cols.URL = DefaultColumns.URL
	}
	if cols.Title == "" {
		cols.Title = DefaultColumns.Title
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, errors.New("input is empty")
	}
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	urlIdx, titleIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		switch name {
		case cols.URL:
			urlIdx = i
		case cols.Title:
			titleIdx = i
		}
	}
	if urlIdx < 0 {
		return Result{}, fmt.Errorf("missing column %q", cols.URL)
	}
	if titleIdx < 0 {
		return Result{}, fmt.Errorf("missing column %q", cols.Title)
	}

	var res Result
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("read row: %w", err)
		}
		url := field(rec, urlIdx)
		title := field(rec, titleIdx)
		if url == "" || title == "" {
			res.Skipped++
			continue
		}
		res.Items = append(res.Items, verify.WorkItem{
			Index:         len(res.Items),
			URL:           url,
			ExpectedTitle: title,
		})
	}
}

func field(rec []string, idx int) string {
	if idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}
