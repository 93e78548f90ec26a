package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xhad/company-agent/internal/models"
	"github.com/xhad/company-agent/pkg/logger"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type ArchiveConfig struct {
	ConnString string
	TableName  string
	Logger     *zap.Logger
}

// Archive keeps the transcripts of finished sessions in Postgres. It is
// write-mostly; nothing reads it back into a live session.
type Archive struct {
	config ArchiveConfig
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewWithConfig(ctx context.Context, config ArchiveConfig) (*Archive, error) {
	if config.ConnString == "" {
		return nil, errors.New("database connection string is required")
	}
	if config.TableName == "" {
		config.TableName = "transcripts"
	}
	if !tableName.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &Archive{
		config: config,
		pool:   pool,
		logger: logger.OrNop(config.Logger).Named("archive"),
	}

	if err := a.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return a, nil
}

func (a *Archive) initialize(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			domain TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT,
			model TEXT,
			error TEXT,
			structured JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`, a.config.TableName)

	if _, err := a.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_session_idx
		ON %s (session_id, position)`,
		a.config.TableName, a.config.TableName)

	if _, err := a.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// row is one entry as it is written to the table.
type row struct {
	ID         string
	Position   int
	Domain     string
	Question   string
	Answer     *string
	Model      *string
	Error      *string
	Structured []byte
	CreatedAt  time.Time
}

func toRows(entries []models.QueryResult) ([]row, error) {
	rows := make([]row, 0, len(entries))
	for i, e := range entries {
		r := row{
			ID:        e.ID,
			Position:  i,
			Domain:    sanitizeUTF8(e.Domain),
			Question:  sanitizeUTF8(e.Question),
			Answer:    optional(e.Answer),
			Model:     optional(e.Model),
			Error:     optional(e.Error),
			CreatedAt: e.Timestamp,
		}
		if r.ID == "" {
			return nil, fmt.Errorf("entry %d has no id", i)
		}
		if e.Structured != nil {
			data, err := json.Marshal(e.Structured)
			if err != nil {
				return nil, fmt.Errorf("failed to encode entry %d: %w", i, err)
			}
			r.Structured = data
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// Save writes the entries of one session. Entries already stored are left
// alone, so saving a session twice is harmless.
func (a *Archive) Save(ctx context.Context, sessionID string, entries []models.QueryResult) error {
	if len(entries) == 0 {
		return nil
	}
	rows, err := toRows(entries)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, position, domain, question, answer, model, error, structured, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		a.config.TableName)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(stmt, r.ID, sessionID, r.Position, r.Domain, r.Question, r.Answer, r.Model, r.Error, r.Structured, r.CreatedAt)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert entries: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	a.logger.Debug("archived transcript", zap.String("session_id", sessionID), zap.Int("entries", len(rows)))
	return nil
}

// Load returns the archived entries of a session in their original order.
func (a *Archive) Load(ctx context.Context, sessionID string) ([]models.QueryResult, error) {
	query := fmt.Sprintf(`
		SELECT id, domain, question, answer, model, error, structured, created_at
		FROM %s
		WHERE session_id = $1
		ORDER BY position`,
		a.config.TableName)

	rows, err := a.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var entries []models.QueryResult
	for rows.Next() {
		var (
			e                    models.QueryResult
			answer, model, cause *string
			structured           []byte
		)
		if err := rows.Scan(&e.ID, &e.Domain, &e.Question, &answer, &model, &cause, &structured, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Answer, e.Model, e.Error = deref(answer), deref(model), deref(cause)
		if structured != nil {
			if err := json.Unmarshal(structured, &e.Structured); err != nil {
				return nil, fmt.Errorf("failed to decode entry %s: %w", e.ID, err)
			}
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (a *Archive) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	s = sanitizeUTF8(s)
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Postgres rejects invalid UTF-8 in TEXT columns.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
