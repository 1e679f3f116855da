package model

import "time"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation session.
type Turn struct {
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	CreationTime time.Time `json:"creationTime"`
}

// Pair expands one stored exchange into its human and assistant turns.
func Pair(human, assistant string, at time.Time) []Turn {
	return []Turn{
		{Role: RoleHuman, Content: human, CreationTime: at},
		{Role: RoleAssistant, Content: assistant, CreationTime: at},
	}
}

// KnowledgeBase is the registry record for a per-video collection.
type KnowledgeBase struct {
	VideoID        string    `json:"video_id"`
	Title          string    `json:"title"`
	CollectionName string    `json:"collection_name"`
	StoragePath    string    `json:"storage_path"`
	ChunkCount     int       `json:"chunk_count"`
	CreationTime   time.Time `json:"creation_time"`
}

// DocumentChunk is a retrieved subtitle segment.
type DocumentChunk struct {
	ID    string  `json:"id"`
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// IncrementKind tags a streamed response increment.
type IncrementKind string

const (
	KindText  IncrementKind = "text"
	KindError IncrementKind = "error"
	KindDone  IncrementKind = "done"
)

// Increment is one element of a streamed answer.
type Increment struct {
	Kind    IncrementKind `json:"kind"`
	Payload string        `json:"payload"`
}

func TextIncrement(s string) Increment  { return Increment{Kind: KindText, Payload: s} }
func ErrorIncrement(s string) Increment { return Increment{Kind: KindError, Payload: s} }
func DoneIncrement() Increment          { return Increment{Kind: KindDone} }
