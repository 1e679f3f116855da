// Package redis keeps sessions and the knowledge-base registry in Redis.
// Each exchange is one list element, so appends are atomic.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Han1236/syuka-insight/internal/model"
	"github.com/Han1236/syuka-insight/internal/store"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "rag:"

// putScript registers a knowledge base only when absent and indexes it by
// creation time in the same step.
var putScript = goredis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// Open connects to addr and verifies the connection.
func Open(ctx context.Context, addr string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewWithClient wraps client. An empty prefix selects DefaultPrefix.
func NewWithClient(client *goredis.Client, prefix string) store.Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &redisStore{client: client, prefix: prefix}
}

type redisStore struct {
	client *goredis.Client
	prefix string
}

func (s *redisStore) Sessions() store.Sessions             { return &sessions{s} }
func (s *redisStore) KnowledgeBases() store.KnowledgeBases { return &registry{s} }
func (s *redisStore) Close() error                         { return s.client.Close() }

// HealthPing implements health.HealthPinger.
func (s *redisStore) HealthPing(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *redisStore) sessionKey(key string) string { return s.prefix + "session:" + key }
func (s *redisStore) kbHash() string                { return s.prefix + "kb" }
func (s *redisStore) kbOrder() string               { return s.prefix + "kb:order" }

// --- Sessions ---
type sessions struct{ *redisStore }

type exchange struct {
	Human     string `json:"h"`
	Assistant string `json:"a"`
	At        int64  `json:"t"`
}

func (s *sessions) Turns(ctx context.Context, key string) ([]model.Turn, error) {
	vals, err := s.client.LRange(ctx, s.sessionKey(key), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Turn, 0, 2*len(vals))
	for _, v := range vals {
		var ex exchange
		if err := json.Unmarshal([]byte(v), &ex); err != nil {
			return nil, fmt.Errorf("decode exchange: %w", err)
		}
		out = append(out, model.Pair(ex.Human, ex.Assistant, time.Unix(0, ex.At).UTC())...)
	}
	return out, nil
}

func (s *sessions) AppendTurn(ctx context.Context, key, human, assistant string) error {
	b, err := json.Marshal(exchange{Human: human, Assistant: assistant, At: time.Now().UnixNano()})
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.sessionKey(key), b).Err()
}

func (s *sessions) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.sessionKey(key)).Err()
}

func (s *sessions) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.sessionKey(key)).Result()
	return n > 0, err
}

// --- Knowledge-base registry ---
type registry struct{ *redisStore }

func (r *registry) Put(ctx context.Context, kb *model.KnowledgeBase) error {
	rec := *kb
	if rec.CreationTime.IsZero() {
		rec.CreationTime = time.Now().UTC()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// micro-seconds keep the score exact in a float64
	score := float64(rec.CreationTime.UnixMicro())
	ok, err := putScript.Run(ctx, r.client, []string{r.kbHash(), r.kbOrder()}, rec.VideoID, b, score).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return store.ErrKBExists(kb.VideoID)
	}
	return nil
}

func (r *registry) Get(ctx context.Context, videoID string) (*model.KnowledgeBase, error) {
	v, err := r.client.HGet(ctx, r.kbHash(), videoID).Result()
	if err == goredis.Nil {
		return nil, store.ErrKBNotFound(videoID)
	}
	if err != nil {
		return nil, err
	}
	return decodeKB(v)
}

func (r *registry) List(ctx context.Context) ([]*model.KnowledgeBase, error) {
	ids, err := r.client.ZRange(ctx, r.kbOrder(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := []*model.KnowledgeBase{}
	if len(ids) == 0 {
		return out, nil
	}
	vals, err := r.client.HMGet(ctx, r.kbHash(), ids...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		kb, err := decodeKB(s)
		if err != nil {
			return nil, err
		}
		out = append(out, kb)
	}
	return out, nil
}

func decodeKB(v string) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := json.Unmarshal([]byte(v), &kb); err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}
	kb.CreationTime = kb.CreationTime.UTC()
	return &kb, nil
}
