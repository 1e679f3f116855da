package weaviate

import (
	"context"
	"fmt"
	"time"

	"github.com/weaviate/weaviate/entities/models"
)

// Bootstrap ensures the SubtitleChunk class exists. Vectors are supplied by
// the caller, so the class has no vectorizer.
func (x *Index) Bootstrap(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	ex, err := x.client.Schema().ClassGetter().WithClassName(ClassName).Do(cctx)
	if err == nil && ex != nil {
		return nil
	}
	class := &models.Class{
		Class:      ClassName,
		Vectorizer: "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
		Properties: []*models.Property{
			{Name: "collection", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "text", DataType: []string{"text"}},
		},
	}
	if err := x.client.Schema().ClassCreator().WithClass(class).Do(cctx); err != nil {
		return fmt.Errorf("create class %s: %w", ClassName, err)
	}
	return nil
}
