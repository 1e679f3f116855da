package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Han1236/syuka-insight/internal/model"
	"github.com/Han1236/syuka-insight/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Keys are unique per run so shared databases can be reused between runs.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	run := uuid.NewString()[:8]

	t.Run("MissingSessionIsEmptyAndNotCreated", func(t *testing.T) {
		key := store.SessionKey("vid"+run, "")
		turns, err := s.Sessions().Turns(ctx, key)
		if err != nil || len(turns) != 0 {
			t.Fatalf("Turns on missing session: n=%d err=%v", len(turns), err)
		}
		if ok, err := s.Sessions().Exists(ctx, key); err != nil || ok {
			t.Fatalf("Exists after read: ok=%v err=%v", ok, err)
		}
	})

	t.Run("AppendKeepsOrderAndPairs", func(t *testing.T) {
		key := store.SessionKey("vid"+run, "order")
		if err := s.Sessions().AppendTurn(ctx, key, "q1", "a1"); err != nil {
			t.Fatalf("AppendTurn 1: %v", err)
		}
		if err := s.Sessions().AppendTurn(ctx, key, "q2", "a2"); err != nil {
			t.Fatalf("AppendTurn 2: %v", err)
		}
		turns, err := s.Sessions().Turns(ctx, key)
		if err != nil {
			t.Fatalf("Turns: %v", err)
		}
		want := []model.Turn{
			{Role: model.RoleHuman, Content: "q1"},
			{Role: model.RoleAssistant, Content: "a1"},
			{Role: model.RoleHuman, Content: "q2"},
			{Role: model.RoleAssistant, Content: "a2"},
		}
		if len(turns) != len(want) {
			t.Fatalf("Turns: got %d want %d", len(turns), len(want))
		}
		for i := range want {
			if turns[i].Role != want[i].Role || turns[i].Content != want[i].Content {
				t.Fatalf("turn %d: got %+v want %+v", i, turns[i], want[i])
			}
			if i > 0 && turns[i].CreationTime.Before(turns[i-1].CreationTime) {
				t.Fatalf("turn %d goes back in time", i)
			}
		}
		if ok, err := s.Sessions().Exists(ctx, key); err != nil || !ok {
			t.Fatalf("Exists after append: ok=%v err=%v", ok, err)
		}
	})

	t.Run("SessionsAreIsolated", func(t *testing.T) {
		a := store.SessionKey("vid"+run, "alice")
		b := store.SessionKey("vid"+run, "bob")
		if err := s.Sessions().AppendTurn(ctx, a, "안녕", "반가워요"); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
		if turns, err := s.Sessions().Turns(ctx, b); err != nil || len(turns) != 0 {
			t.Fatalf("other session leaked: n=%d err=%v", len(turns), err)
		}
	})

	t.Run("ResetClears", func(t *testing.T) {
		key := store.SessionKey("vid"+run, "reset")
		if err := s.Sessions().AppendTurn(ctx, key, "q", "a"); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
		if err := s.Sessions().Reset(ctx, key); err != nil {
			t.Fatalf("Reset: %v", err)
		}
		if turns, err := s.Sessions().Turns(ctx, key); err != nil || len(turns) != 0 {
			t.Fatalf("Turns after reset: n=%d err=%v", len(turns), err)
		}
		if ok, err := s.Sessions().Exists(ctx, key); err != nil || ok {
			t.Fatalf("Exists after reset: ok=%v err=%v", ok, err)
		}
		if err := s.Sessions().Reset(ctx, key); err != nil {
			t.Fatalf("Reset of missing session must be a no-op: %v", err)
		}
	})

	t.Run("ConcurrentAppendsNeverSplitPairs", func(t *testing.T) {
		key := store.SessionKey("vid"+run, "concurrent")
		const n = 10
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Sessions().AppendTurn(ctx, key, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("AppendTurn: %v", err)
			}
		}
		turns, err := s.Sessions().Turns(ctx, key)
		if err != nil || len(turns) != 2*n {
			t.Fatalf("Turns: n=%d err=%v", len(turns), err)
		}
		for i := 0; i < len(turns); i += 2 {
			h, a := turns[i], turns[i+1]
			if h.Role != model.RoleHuman || a.Role != model.RoleAssistant || "a"+h.Content[1:] != a.Content {
				t.Fatalf("pair %d split: %+v %+v", i/2, h, a)
			}
		}
	})

	t.Run("KnowledgeBaseRegistry", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Millisecond)
		ids := []string{"c" + run, "a" + run, "b" + run}
		for i, id := range ids {
			kb := &model.KnowledgeBase{
				VideoID:        id,
				Title:          "영상 " + id,
				CollectionName: "chroma_db_" + id,
				StoragePath:    "./chroma_db/" + id,
				ChunkCount:     i + 1,
				CreationTime:   base.Add(time.Duration(i) * time.Second),
			}
			if err := s.KnowledgeBases().Put(ctx, kb); err != nil {
				t.Fatalf("Put %s: %v", id, err)
			}
		}

		err := s.KnowledgeBases().Put(ctx, &model.KnowledgeBase{VideoID: ids[0], Title: "dup", CreationTime: base})
		if !model.IsAlreadyExistsError(err) {
			t.Fatalf("duplicate Put: want AlreadyExists, got %v", err)
		}

		got, err := s.KnowledgeBases().Get(ctx, ids[1])
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Title != "영상 "+ids[1] || got.ChunkCount != 2 || got.CollectionName != "chroma_db_"+ids[1] {
			t.Fatalf("Get: unexpected record %+v", got)
		}
		if !got.CreationTime.Equal(base.Add(time.Second)) {
			t.Fatalf("Get: creation time %v want %v", got.CreationTime, base.Add(time.Second))
		}

		if _, err := s.KnowledgeBases().Get(ctx, "missing"+run); !model.IsNotFoundError(err) {
			t.Fatalf("Get missing: want NotFound, got %v", err)
		}

		list, err := s.KnowledgeBases().List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		var order []string
		for _, kb := range list {
			for _, id := range ids {
				if kb.VideoID == id {
					order = append(order, id)
				}
			}
		}
		if fmt.Sprint(order) != fmt.Sprint(ids) {
			t.Fatalf("List order: got %v want %v", order, ids)
		}
	})
}
