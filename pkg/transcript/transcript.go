package transcript

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/xhad/company-agent/internal/models"
)

// Transcript is the append-only log of one session's exchanges.
type Transcript struct {
	mu      sync.RWMutex
	entries []models.QueryResult
}

func New() *Transcript {
	return &Transcript{}
}

// Append stores a copy of result; later changes to the caller's value don't
// reach the stored entry.
func (t *Transcript) Append(result models.QueryResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, result.Clone())
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns copies of all entries in insertion order.
func (t *Transcript) Entries() []models.QueryResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.QueryResult, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Clone()
	}
	return out
}

// Clear drops every entry. It's only reached from an explicit user action.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

// ExportJSON renders the transcript as an indented JSON array. Each element
// holds the entry's structured fields plus question and answer; a failed
// turn holds question, error and timestamp instead. Object keys are sorted,
// so the output only changes when entries are appended or cleared.
func (t *Transcript) ExportJSON() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	docs := make([]map[string]any, 0, len(t.entries))
	for _, e := range t.entries {
		docs = append(docs, exportEntry(e))
	}
	return json.MarshalIndent(docs, "", "  ")
}

func exportEntry(e models.QueryResult) map[string]any {
	if e.Failed() {
		return map[string]any{
			"question":  e.Question,
			"error":     e.Error,
			"timestamp": e.Timestamp.Format(time.RFC3339),
		}
	}
	doc := make(map[string]any, len(e.Structured)+2)
	for k, v := range e.Structured {
		doc[k] = v
	}
	doc["question"] = e.Question
	doc["answer"] = e.Answer
	return doc
}
