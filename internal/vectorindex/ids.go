package vectorindex

import (
	"strconv"

	"github.com/google/uuid"
)

var chunkNamespace = uuid.MustParse("6f0b5c3e-2f3a-4d8e-9a51-1c7e1f0f6b42")

// ChunkID derives a stable UUID for the chunk at index in collection, so
// re-writing a collection overwrites rather than duplicates.
func ChunkID(collection string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(collection+"/"+strconv.Itoa(index))).String()
}
