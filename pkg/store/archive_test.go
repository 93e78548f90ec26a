package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/company-agent/internal/models"
)

func testEntries() []models.QueryResult {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []models.QueryResult{
		{
			ID:         uuid.NewString(),
			Domain:     "microsoft.com",
			Question:   "When was it founded?",
			Answer:     "1975",
			Model:      "gpt-4o-mini",
			Structured: map[string]any{"answer": "1975"},
			Timestamp:  ts,
		},
		{
			ID:        uuid.NewString(),
			Domain:    "microsoft.com",
			Question:  "Who runs it?",
			Model:     "gpt-4o-mini",
			Error:     "completion failed: 401",
			Timestamp: ts.Add(time.Minute),
		},
	}
}

func TestToRows(t *testing.T) {
	entries := testEntries()
	rows, err := toRows(entries)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 0, rows[0].Position)
	assert.Equal(t, "1975", *rows[0].Answer)
	assert.Nil(t, rows[0].Error)
	assert.JSONEq(t, `{"answer":"1975"}`, string(rows[0].Structured))

	assert.Equal(t, 1, rows[1].Position)
	assert.Nil(t, rows[1].Answer)
	assert.Equal(t, "completion failed: 401", *rows[1].Error)
	assert.Nil(t, rows[1].Structured)

	_, err = toRows([]models.QueryResult{{Question: "no id"}})
	assert.Error(t, err)
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "Microsoft", sanitizeUTF8("Micro\xffsoft"))
	assert.Equal(t, "Société", sanitizeUTF8("Société"))
}

func TestNewWithConfigValidation(t *testing.T) {
	_, err := NewWithConfig(context.Background(), ArchiveConfig{})
	assert.Error(t, err)

	_, err = NewWithConfig(context.Background(), ArchiveConfig{
		ConnString: "postgresql://localhost:5432/agent",
		TableName:  "transcripts; DROP TABLE users",
	})
	assert.ErrorContains(t, err, "invalid table name")
}

func TestArchive(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	a, err := NewWithConfig(ctx, ArchiveConfig{ConnString: dsn, TableName: "test_transcripts"})
	require.NoError(t, err)
	defer a.Close()

	sessionID := uuid.NewString()
	entries := testEntries()
	require.NoError(t, a.Save(ctx, sessionID, entries))
	require.NoError(t, a.Save(ctx, sessionID, entries))

	loaded, err := a.Load(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, entries[0].ID, loaded[0].ID)
	assert.Equal(t, "1975", loaded[0].Answer)
	assert.Equal(t, map[string]any{"answer": "1975"}, loaded[0].Structured)
	assert.True(t, loaded[1].Failed())
	assert.True(t, entries[1].Timestamp.Equal(loaded[1].Timestamp))
}
