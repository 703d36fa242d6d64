package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendra/flowcanvas/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func sampleDefinition() schema.Workflow {
	return schema.Workflow{
		ID:   uuid.New().String(),
		Name: "onboarding",
		Nodes: []schema.Node{
			{ID: "start", Kind: schema.NodeStart, Label: "Start", Position: schema.Position{X: 0, Y: 0}},
			{ID: "end", Kind: schema.NodeEnd, Label: "End", Position: schema.Position{X: 200, Y: 0}},
		},
		Connections: []schema.Connection{
			{ID: "c1", Source: "start", Target: "end"},
		},
	}
}

func seedDocument(t *testing.T, s *LibSQLStore) *Document {
	t.Helper()
	doc := &Document{
		ID:         uuid.New().String(),
		Name:       "onboarding",
		Definition: sampleDefinition(),
	}
	require.NoError(t, s.CreateDocument(context.Background(), doc))
	return doc
}

// --- Document Tests ---

func TestCreateAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := seedDocument(t, s)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "onboarding", got.Name)
	assert.Len(t, got.Definition.Nodes, 2)
	assert.Len(t, got.Definition.Connections, 1)
	assert.Equal(t, schema.NodeStart, got.Definition.Nodes[0].Kind)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetDocument_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocument(context.Background(), "nonexistent")
	require.Error(t, err)
	flowErr, ok := err.(*schema.FlowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeNotFound, flowErr.Code)
}

func TestUpdateDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	name := "renamed"
	def := doc.Definition
	def.Nodes = append(def.Nodes, schema.Node{
		ID: "task1", Kind: schema.NodeTask, Label: "Review",
	})
	require.NoError(t, s.UpdateDocument(ctx, doc.ID, DocumentUpdate{
		Name:       &name,
		Definition: &def,
	}))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Len(t, got.Definition.Nodes, 3)
}

func TestUpdateDocument_NotFound(t *testing.T) {
	s := newTestStore(t)
	name := "x"
	err := s.UpdateDocument(context.Background(), "missing", DocumentUpdate{Name: &name})
	require.Error(t, err)
	flowErr, ok := err.(*schema.FlowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeNotFound, flowErr.Code)
}

func TestListDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s)
	seedDocument(t, s)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDeleteDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))

	_, err := s.GetDocument(ctx, doc.ID)
	require.Error(t, err)

	err = s.DeleteDocument(ctx, doc.ID)
	require.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	seedDocument(t, s)
	require.NoError(t, s.Vacuum(context.Background()))
}
