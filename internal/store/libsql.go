package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage (e.g. run event log).
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Documents ---

func (s *LibSQLStore) CreateDocument(ctx context.Context, doc *Document) error {
	body, err := json.Marshal(doc.Definition)
	if err != nil {
		return fmt.Errorf("marshal document definition: %w", err)
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, definition, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, string(body), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create document: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	doc := &Document{}
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, definition, created_at, updated_at FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Name, &body, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("document", id)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &doc.Definition); err != nil {
		return nil, fmt.Errorf("unmarshal document definition: %w", err)
	}
	return doc, nil
}

func (s *LibSQLStore) UpdateDocument(ctx context.Context, id string, update DocumentUpdate) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if update.Name != nil {
		doc.Name = *update.Name
	}
	if update.Definition != nil {
		doc.Definition = *update.Definition
	}
	body, err := json.Marshal(doc.Definition)
	if err != nil {
		return fmt.Errorf("marshal document definition: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET name = ?, definition = ?, updated_at = ? WHERE id = ?`,
		doc.Name, string(body), time.Now().UTC(), id,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "update document: %s", err.Error()).WithCause(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return storeNotFound("document", id)
	}
	return nil
}

func (s *LibSQLStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, definition, created_at, updated_at FROM documents ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc := &Document{}
		var body string
		if err := rows.Scan(&doc.ID, &doc.Name, &body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(body), &doc.Definition); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *LibSQLStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete document: %s", err.Error()).WithCause(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return storeNotFound("document", id)
	}
	return nil
}

// --- Run events ---

// AppendRunEvent appends an event to the run audit log.
func (s *LibSQLStore) AppendRunEvent(ctx context.Context, event *RunEvent) error {
	return NewEventLog(s).AppendEvent(ctx, event)
}

func (s *LibSQLStore) GetRunEvents(ctx context.Context, runID string, since int64) ([]*RunEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, run_id, node_id, event_type, payload, timestamp, sequence
		 FROM run_events WHERE run_id = ? AND sequence > ? ORDER BY sequence ASC`,
		runID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*RunEvent
	for rows.Next() {
		e := &RunEvent{}
		var docID, nodeID, payload sql.NullString
		if err := rows.Scan(&e.ID, &docID, &e.RunID, &nodeID, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.DocumentID = docID.String
		e.NodeID = nodeID.String
		e.Payload = jsonOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- helpers ---

func storeNotFound(kind, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s not found: %s", kind, id)
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func nullRaw(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
