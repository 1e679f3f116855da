package store

import (
	"context"

	"github.com/Han1236/syuka-insight/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (memory, sqlite, postgres, redis).
type Store interface {
	Sessions() Sessions
	KnowledgeBases() KnowledgeBases
	Close() error
}

// Sessions is the per-session conversation log. Reading a session that was
// never written returns an empty log and does not create it.
type Sessions interface {
	Turns(ctx context.Context, key string) ([]model.Turn, error)
	// AppendTurn appends the human and assistant messages as one unit.
	AppendTurn(ctx context.Context, key, human, assistant string) error
	Reset(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KnowledgeBases is the registry of created knowledge bases.
type KnowledgeBases interface {
	// Put fails with model.AlreadyExistsError when video_id is registered.
	Put(ctx context.Context, kb *model.KnowledgeBase) error
	// Get fails with model.NotFoundError when video_id is unknown.
	Get(ctx context.Context, videoID string) (*model.KnowledgeBase, error)
	// List returns every knowledge base ordered by creation time.
	List(ctx context.Context) ([]*model.KnowledgeBase, error)
}

// SessionKey builds the conversation key for a video and optional session id.
func SessionKey(videoID, sessionID string) string {
	if sessionID == "" {
		return videoID
	}
	return videoID + "#" + sessionID
}

// ErrKBNotFound builds the registry miss error for videoID.
func ErrKBNotFound(videoID string) error {
	return model.NotFoundError{Resource: "knowledge base", ID: videoID}
}

// ErrKBExists builds the duplicate registration error for videoID.
func ErrKBExists(videoID string) error {
	return model.AlreadyExistsError{Resource: "knowledge base", ID: videoID}
}
