package statements

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SampleSize is the number of records written to the sample file.
const SampleSize = 5

// OutputFiles lists the files written by WriteOutputs.
type OutputFiles struct {
	Messages string
	Results  string
	Sample   string
}

type messageLine struct {
	RunID string `json:"run_id,omitempty"`
	MessageEntry
}

// WriteOutputs writes the messages log and results as JSONL, plus a pretty
// printed sample of the first records keyed by document id. File names
// carry the prefix and a timestamp taken from now.
func WriteOutputs(dir, prefix, runID string, results *Results, now time.Time) (*OutputFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	ts := now.Format("20060102_150405")
	files := &OutputFiles{
		Messages: filepath.Join(dir, fmt.Sprintf("%s_messages_%s.jsonl", prefix, ts)),
		Results:  filepath.Join(dir, fmt.Sprintf("%s_%s.jsonl", prefix, ts)),
		Sample:   filepath.Join(dir, fmt.Sprintf("%s_sample_%s.json", prefix, ts)),
	}

	messages := results.Messages()
	lines := make([]any, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, messageLine{RunID: runID, MessageEntry: m})
	}
	if err := writeJSONL(files.Messages, lines); err != nil {
		return nil, err
	}

	records := results.Records()
	recs := make([]any, 0, len(records))
	for _, r := range records {
		recs = append(recs, r)
	}
	if err := writeJSONL(files.Results, recs); err != nil {
		return nil, err
	}

	sample := make(map[string]Record, SampleSize)
	for _, r := range records[:min(SampleSize, len(records))] {
		sample[fmt.Sprint(r["doc_id"])] = r
	}
	raw, err := json.MarshalIndent(sample, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode sample: %w", err)
	}
	if err := os.WriteFile(files.Sample, raw, 0o644); err != nil {
		return nil, fmt.Errorf("write sample: %w", err)
	}
	return files, nil
}

func writeJSONL(path string, values []any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return w.Flush()
}
