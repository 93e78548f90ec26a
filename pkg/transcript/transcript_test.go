package transcript

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/company-agent/internal/models"
)

func result(i int) models.QueryResult {
	return models.QueryResult{
		ID:       fmt.Sprintf("id-%d", i),
		Domain:   "microsoft.com",
		Question: fmt.Sprintf("question %d", i),
		Answer:   fmt.Sprintf("answer %d", i),
		Structured: map[string]any{
			"answer":    fmt.Sprintf("answer %d", i),
			"domain":    "microsoft.com",
			"knowledge": []string{"fact"},
		},
		Timestamp: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func decode(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(data, &docs))
	return docs
}

func TestExportEmpty(t *testing.T) {
	data, err := New().ExportJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestExportIsIdempotent(t *testing.T) {
	tr := New()
	for i := 0; i < 3; i++ {
		tr.Append(result(i))
	}

	first, err := tr.ExportJSON()
	require.NoError(t, err)
	for n := 0; n < 10; n++ {
		again, err := tr.ExportJSON()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 3, tr.Len())
}

func TestAppendGrowsExportByOne(t *testing.T) {
	tr := New()
	tr.Append(result(0))
	tr.Append(result(1))

	before, err := tr.ExportJSON()
	require.NoError(t, err)
	beforeDocs := decode(t, before)

	tr.Append(result(2))
	after, err := tr.ExportJSON()
	require.NoError(t, err)
	afterDocs := decode(t, after)

	require.Len(t, afterDocs, len(beforeDocs)+1)
	assert.Equal(t, beforeDocs, afterDocs[:len(beforeDocs)])
	assert.Equal(t, "question 2", afterDocs[2]["question"])
}

func TestExportEntryShape(t *testing.T) {
	tr := New()
	tr.Append(models.QueryResult{
		Question:   "When was it founded?",
		Answer:     "1975",
		Structured: map[string]any{"answer": "1975"},
		Model:      "gpt-4o",
	})
	tr.Append(models.QueryResult{
		Question:  "And now?",
		Error:     "completion failed: 401",
		Timestamp: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	})

	data, err := tr.ExportJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"question":"When was it founded?","answer":"1975"},
		{"question":"And now?","error":"completion failed: 401","timestamp":"2025-01-01T12:00:00Z"}
	]`, string(data))
}

func TestAppendedEntriesAreNotMutated(t *testing.T) {
	tr := New()
	r := result(0)
	tr.Append(r)

	r.Answer = "edited"
	r.Structured["answer"] = "edited"
	r.Structured["knowledge"].([]string)[0] = "edited"

	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "answer 0", entries[0].Answer)
	assert.Equal(t, "answer 0", entries[0].Structured["answer"])
	assert.Equal(t, []string{"fact"}, entries[0].Structured["knowledge"])

	entries[0].Structured["answer"] = "edited again"
	assert.Equal(t, "answer 0", tr.Entries()[0].Structured["answer"])
}

func TestClear(t *testing.T) {
	tr := New()
	tr.Append(result(0))
	tr.Clear()
	assert.Zero(t, tr.Len())

	data, err := tr.ExportJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}
