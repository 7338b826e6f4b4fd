package statements

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestWriteOutputs(t *testing.T) {
	results := NewResults()
	for i := 0; i < 7; i++ {
		tr := &Transcript{Request: []Message{NewUserMessage(fmt.Sprintf("p%d", i))}, Response: "{}", Attempts: 1}
		require.NoError(t, results.Collate(Record{"id": fmt.Sprintf("d%d", i)}, tr, Record{"n": i}))
	}
	require.NoError(t, results.Collate(Record{"id": "d0"}, &Transcript{Attempts: 2}, Record{"n": 99}))

	dir := filepath.Join(t.TempDir(), "out")
	now := time.Date(2024, time.May, 1, 9, 30, 0, 0, time.UTC)
	files, err := WriteOutputs(dir, "stance", "run-1", results, now)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "stance_messages_20240501_093000.jsonl"), files.Messages)
	assert.Equal(t, filepath.Join(dir, "stance_20240501_093000.jsonl"), files.Results)
	assert.Equal(t, filepath.Join(dir, "stance_sample_20240501_093000.json"), files.Sample)

	messages := readLines(t, files.Messages)
	require.Len(t, messages, 8)
	assert.Equal(t, "run-1", messages[0]["run_id"])
	assert.Equal(t, "d0", messages[0]["doc_id"])
	assert.Equal(t, []any{map[string]any{"role": "user", "content": "p0"}}, messages[0]["input"])

	records := readLines(t, files.Results)
	require.Len(t, records, 7)
	assert.Equal(t, "d0", records[0]["doc_id"])
	assert.Equal(t, float64(0), records[0]["n"])

	raw, err := os.ReadFile(files.Sample)
	require.NoError(t, err)
	var sample map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &sample))
	assert.Len(t, sample, SampleSize)
	assert.Contains(t, sample, "d4")
	assert.NotContains(t, sample, "d5")
}

func TestWriteOutputs_Empty(t *testing.T) {
	files, err := WriteOutputs(t.TempDir(), "empty", "", NewResults(), time.Now())
	require.NoError(t, err)

	assert.Empty(t, readLines(t, files.Results))
	raw, err := os.ReadFile(files.Sample)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}
