package statements

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResults_Collate(t *testing.T) {
	r := NewResults(WithIncludeFields("speaker"))
	tr := &Transcript{
		Request:  []Message{NewUserMessage("p")},
		Response: `{"label":"left"}`,
		Attempts: 2,
	}

	require.NoError(t, r.Collate(Record{"id": 7, "speaker": "Ann", "text": "long"}, tr, Record{"label": "left"}))

	rec, ok := r.Get("7")
	require.True(t, ok)
	assert.Equal(t, Record{"doc_id": 7, "speaker": "Ann", "label": "left"}, rec)

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 7, msgs[0].DocID)
	assert.Equal(t, 2, msgs[0].Attempts)
	assert.Equal(t, `{"label":"left"}`, msgs[0].Output)
}

func TestResults_DuplicateDropped(t *testing.T) {
	var buf bytes.Buffer
	r := NewResults(WithResultsLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	require.NoError(t, r.Collate(Record{"id": "x"}, &Transcript{Response: "first"}, Record{"v": 1}))
	require.NoError(t, r.Collate(Record{"id": "x"}, &Transcript{Response: "second"}, Record{"v": 2}))

	rec, ok := r.Get("x")
	require.True(t, ok)
	assert.Equal(t, 1, rec["v"], "first record wins")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"x"}, r.Duplicates())
	assert.Len(t, r.Messages(), 2, "transcripts are kept for duplicates")
	assert.Contains(t, buf.String(), "Duplicate doc_id found, skipping")
	assert.Contains(t, buf.String(), "doc_id=x")
}

func TestResults_MissingID(t *testing.T) {
	r := NewResults(WithIDField("uid"))
	err := r.Collate(Record{"id": "x"}, nil, Record{})
	assert.ErrorIs(t, err, errMissingID)
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Messages())
}

func TestResults_OrderAndConcurrency(t *testing.T) {
	r := NewResults()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Collate(Record{"id": fmt.Sprint(i % 60)}, &Transcript{}, Record{})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 60, r.Len())
	assert.Len(t, r.Records(), 60)
	assert.Len(t, r.Duplicates(), 40)
	assert.Len(t, r.Messages(), 100)
}
