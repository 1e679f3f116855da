package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Han1236/syuka-insight/internal/store"
	"github.com/Han1236/syuka-insight/internal/store/storetest"
)

func makeSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "rag.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return s
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeSQLiteStore)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "rag.db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Sessions().AppendTurn(ctx, "abc123", "질문", "답변"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = s.Close()

	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	turns, err := s.Sessions().Turns(ctx, "abc123")
	if err != nil || len(turns) != 2 {
		t.Fatalf("turns after reopen: n=%d err=%v", len(turns), err)
	}
}
