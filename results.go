package statements

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultIDField is the item field that identifies a document.
const DefaultIDField = "id"

// MessageEntry is one line of the messages log.
type MessageEntry struct {
	DocID    any       `json:"doc_id"`
	Input    []Message `json:"input"`
	Output   string    `json:"output"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error,omitempty"`
}

// Results collects parsed records keyed by document id. The first record
// for an id wins; later ones are dropped with a warning. It is safe for
// concurrent use.
type Results struct {
	mu         sync.Mutex
	idField    string
	include    []string
	records    map[string]Record
	order      []string
	messages   []MessageEntry
	duplicates []string
	log        *slog.Logger
}

// ResultsOption configures Results.
type ResultsOption func(*Results)

// WithIDField sets the item field used as document id.
func WithIDField(field string) ResultsOption {
	return func(r *Results) { r.idField = field }
}

// WithIncludeFields copies the named item fields into every record.
func WithIncludeFields(fields ...string) ResultsOption {
	return func(r *Results) { r.include = append(r.include, fields...) }
}

// WithResultsLogger sets the logger used for duplicate warnings.
func WithResultsLogger(l *slog.Logger) ResultsOption {
	return func(r *Results) { r.log = l }
}

// NewResults returns an empty collection.
func NewResults(opts ...ResultsOption) *Results {
	r := &Results{
		idField: DefaultIDField,
		records: make(map[string]Record),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var errMissingID = errors.New("item has no document id")

// Collate stores parsed under the item's document id and logs the transcript.
// The transcript is logged even for duplicates.
func (r *Results) Collate(item Record, tr *Transcript, parsed Record) error {
	id, ok := item[r.idField]
	if !ok || id == nil {
		return fmt.Errorf("%w (field %q)", errMissingID, r.idField)
	}
	key := fmt.Sprint(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if tr != nil {
		r.messages = append(r.messages, MessageEntry{
			DocID:    id,
			Input:    tr.Request,
			Output:   tr.Response,
			Attempts: tr.Attempts,
			Error:    tr.Error,
		})
	}

	if _, exists := r.records[key]; exists {
		r.duplicates = append(r.duplicates, key)
		r.log.Warn("Duplicate doc_id found, skipping", "doc_id", key)
		return nil
	}

	rec := make(Record, len(parsed)+len(r.include)+1)
	rec["doc_id"] = id
	for _, f := range r.include {
		rec[f] = item[f]
	}
	for k, v := range parsed {
		rec[k] = v
	}
	r.records[key] = rec
	r.order = append(r.order, key)
	return nil
}

// Len returns the number of distinct documents collated.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Get returns the record for a document id.
func (r *Results) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Records returns the records in collation order.
func (r *Results) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.records[k])
	}
	return out
}

// Messages returns a copy of the messages log.
func (r *Results) Messages() []MessageEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MessageEntry(nil), r.messages...)
}

// Duplicates returns the ids that were dropped as duplicates, once per drop.
func (r *Results) Duplicates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.duplicates...)
}
