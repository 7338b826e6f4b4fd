package statements

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Dataset formats understood by OpenDataset.
const (
	FormatCSV    = "csv"
	FormatTSV    = "tsv"
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
)

// SliceSource is an in-memory TaskSource.
type SliceSource []Record

func (s SliceSource) Len() int { return len(s) }

func (s SliceSource) Get(index int) (Record, error) {
	if index < 0 || index >= len(s) {
		return nil, fmt.Errorf("index %d out of range [0, %d)", index, len(s))
	}
	return s[index], nil
}

// Window selects rows [Start, End) of a dataset. End == 0 means all rows.
type Window struct {
	Start int
	End   int
}

// Apply validates the window against n rows and returns the bounds.
func (w Window) Apply(n int) (int, int, error) {
	end := w.End
	if end == 0 {
		end = n
	}
	if w.Start < 0 || w.Start >= end || end > n {
		return 0, 0, fmt.Errorf("invalid window [%d, %d) for %d rows", w.Start, w.End, n)
	}
	return w.Start, end, nil
}

// Dataset is a windowed, fully loaded dataset file.
type Dataset struct {
	SliceSource
	Path   string
	Format string
	Offset int // index of the first row in the file
}

// OpenDataset loads a CSV, TSV, NDJSON or JSON array file and applies the
// window. The format is detected from the content, falling back to the
// file extension.
func OpenDataset(path string, w Window) (*Dataset, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var rows []Record
	switch format {
	case FormatCSV:
		rows, err = readDelimited(f, ',')
	case FormatTSV:
		rows, err = readDelimited(f, '\t')
	case FormatNDJSON:
		rows, err = readNDJSON(f)
	case FormatJSON:
		rows, err = readJSONArray(f)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s dataset %s: %w", format, path, err)
	}

	start, end, err := w.Apply(len(rows))
	if err != nil {
		return nil, err
	}
	return &Dataset{
		SliceSource: SliceSource(rows[start:end]),
		Path:        path,
		Format:      format,
		Offset:      start,
	}, nil
}

// DetectFormat reports the dataset format of the file at path.
func DetectFormat(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect dataset format: %w", err)
	}
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/x-ndjson"):
			return FormatNDJSON, nil
		case m.Is("application/json"):
			return FormatJSON, nil
		case m.Is("text/csv"):
			return FormatCSV, nil
		case m.Is("text/tab-separated-values"):
			return FormatTSV, nil
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".jsonl", ".ndjson":
		return FormatNDJSON, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported dataset type %s (%s)", mt.String(), path)
}

func readDelimited(r io.Reader, comma rune) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	var rows []Record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(header))
		for i, name := range header {
			if i < len(fields) {
				rec[name] = fields[i]
			}
		}
		rows = append(rows, rec)
	}
}

func readNDJSON(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	var rows []Record
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, rec)
	}
	return rows, sc.Err()
}

func readJSONArray(r io.Reader) ([]Record, error) {
	var rows []Record
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}
