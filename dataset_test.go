package statements

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenDataset(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		body   string
		format string
	}{
		{"csv", "speeches.csv", "\ufeffid,speaker,text\n1,Ann,\"Hello, world\"\n2,Bob,Bye\n3,Cy,Hi\n", FormatCSV},
		{"tsv", "speeches.tsv", "id\tspeaker\ttext\n1\tAnn\tHello, world\n2\tBob\tBye\n3\tCy\tHi\n", FormatTSV},
		{"ndjson", "speeches.jsonl", "{\"id\":\"1\",\"speaker\":\"Ann\",\"text\":\"Hello, world\"}\n\n{\"id\":\"2\",\"speaker\":\"Bob\",\"text\":\"Bye\"}\n{\"id\":\"3\",\"speaker\":\"Cy\",\"text\":\"Hi\"}\n", FormatNDJSON},
		{"json", "speeches.json", `[{"id":"1","speaker":"Ann","text":"Hello, world"},{"id":"2","speaker":"Bob","text":"Bye"},{"id":"3","speaker":"Cy","text":"Hi"}]`, FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.body)

			ds, err := OpenDataset(path, Window{})
			require.NoError(t, err)
			assert.Equal(t, tt.format, ds.Format)
			assert.Equal(t, 3, ds.Len())

			first, err := ds.Get(0)
			require.NoError(t, err)
			assert.Equal(t, "1", first["id"])
			assert.Equal(t, "Hello, world", first["text"])

			win, err := OpenDataset(path, Window{Start: 1, End: 3})
			require.NoError(t, err)
			assert.Equal(t, 2, win.Len())
			assert.Equal(t, 1, win.Offset)
			rec, err := win.Get(0)
			require.NoError(t, err)
			assert.Equal(t, "Bob", rec["speaker"])
		})
	}
}

func TestWindow_Apply(t *testing.T) {
	tests := []struct {
		name      string
		w         Window
		n         int
		wantStart int
		wantEnd   int
		wantErr   bool
	}{
		{"all", Window{}, 10, 0, 10, false},
		{"slice", Window{Start: 2, End: 5}, 10, 2, 5, false},
		{"open end", Window{Start: 9}, 10, 9, 10, false},
		{"negative start", Window{Start: -1, End: 3}, 10, 0, 0, true},
		{"start past end", Window{Start: 5, End: 5}, 10, 0, 0, true},
		{"end too large", Window{Start: 0, End: 11}, 10, 0, 0, true},
		{"empty dataset", Window{}, 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := tt.w.Apply(tt.n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestOpenDataset_Errors(t *testing.T) {
	_, err := OpenDataset(filepath.Join(t.TempDir(), "missing.csv"), Window{})
	assert.Error(t, err)

	bad := writeFile(t, "bad.jsonl", "{\"id\":1}\n{not json}\n")
	_, err = OpenDataset(bad, Window{})
	assert.Error(t, err)

	small := writeFile(t, "small.csv", "id,text\n1,a\n2,b\n")
	_, err = OpenDataset(small, Window{Start: 0, End: 5})
	assert.Error(t, err)
}

func TestSliceSource_Get(t *testing.T) {
	src := SliceSource{{"id": 1}}
	_, err := src.Get(1)
	assert.Error(t, err)
	_, err = src.Get(-1)
	assert.Error(t, err)
	rec, err := src.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 1, rec["id"])
}
