// Package weaviate keeps every knowledge base in a single SubtitleChunk
// class, partitioned by a collection property.
package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-openapi/strfmt"
	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	filters "github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	gql "github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/Han1236/syuka-insight/internal/vectorindex"
)

// ClassName is the Weaviate class holding subtitle chunks.
const ClassName = "SubtitleChunk"

const batchSize = 100

// Index implements vectorindex.Index with weaviate-go-client.
type Index struct {
	client *weaviate.Client
}

var _ vectorindex.Index = (*Index)(nil)

// New constructs an Index for host (e.g. "weaviate:8080").
func New(host string) (*Index, error) {
	cl, err := weaviate.NewClient(weaviate.Config{Scheme: "http", Host: host})
	if err != nil {
		return nil, err
	}
	return &Index{client: cl}, nil
}

func inCollection(collection string) *filters.WhereBuilder {
	return filters.Where().WithPath([]string{"collection"}).WithOperator(filters.Equal).WithValueText(collection)
}

func (x *Index) Exists(ctx context.Context, collection string) (bool, error) {
	resp, err := x.client.GraphQL().Get().
		WithClassName(ClassName).
		WithWhere(inCollection(collection)).
		WithLimit(1).
		WithFields(gql.Field{Name: "chunkIndex"}).
		Do(ctx)
	if err != nil {
		return false, err
	}
	if len(resp.Errors) > 0 {
		return false, fmt.Errorf("weaviate graphql: %s", formatGraphQLErrors(resp.Errors))
	}
	return len(items(resp.Data)) > 0, nil
}

// Upsert writes the collection in batches. Object ids are derived from the
// collection and chunk index, and a batch write of an existing id replaces
// the object, so a repeated write overwrites instead of duplicating.
func (x *Index) Upsert(ctx context.Context, collection string, records []vectorindex.Record) error {
	for offset := 0; offset < len(records); offset += batchSize {
		end := min(offset+batchSize, len(records))
		objs := make([]*models.Object, 0, end-offset)
		for _, r := range records[offset:end] {
			objs = append(objs, &models.Object{
				Class: ClassName,
				ID:    strfmt.UUID(vectorindex.ChunkID(collection, r.Index)),
				Properties: map[string]interface{}{
					"collection": collection,
					"chunkIndex": r.Index,
					"text":       r.Text,
				},
				Vector: r.Vector,
			})
		}
		resp, err := x.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
		if err != nil {
			return fmt.Errorf("weaviate: batch chunks %d-%d: %w", offset, end-1, err)
		}
		if err := batchErrors(resp); err != nil {
			return err
		}
	}
	return nil
}

// batchErrors reports the first per-object failure of a batch reply.
func batchErrors(resp []models.ObjectsGetResponse) error {
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			if e != nil {
				return fmt.Errorf("weaviate: batch object %s: %s", r.ID, e.Message)
			}
		}
	}
	return nil
}

func (x *Index) Query(ctx context.Context, collection string, vector []float32, k int) ([]vectorindex.Hit, error) {
	near := x.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	resp, err := x.client.GraphQL().Get().
		WithClassName(ClassName).
		WithWhere(inCollection(collection)).
		WithNearVector(near).
		WithLimit(k).
		WithFields(
			gql.Field{Name: "chunkIndex"},
			gql.Field{Name: "text"},
			gql.Field{Name: "_additional", Fields: []gql.Field{{Name: "id"}, {Name: "distance"}}},
		).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate graphql: %s", formatGraphQLErrors(resp.Errors))
	}

	raw := items(resp.Data)
	out := make([]vectorindex.Hit, 0, len(raw))
	for _, m := range raw {
		h := vectorindex.Hit{Text: str(m["text"]), Index: int(num(m["chunkIndex"]))}
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			h.ID = str(add["id"])
			// cosine distance; invert so larger is closer like the other backends
			h.Score = float32(1 - num(add["distance"]))
		}
		out = append(out, h)
	}
	return out, nil
}

func (x *Index) Drop(ctx context.Context, collection string) error {
	_, err := x.client.Batch().ObjectsBatchDeleter().
		WithClassName(ClassName).
		WithWhere(inCollection(collection)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate: delete %s: %w", collection, err)
	}
	return nil
}

// HealthPing checks the readiness endpoint.
func (x *Index) HealthPing(ctx context.Context) error {
	ready, err := x.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("weaviate not ready")
	}
	return nil
}

// items extracts Get.SubtitleChunk from a GraphQL response, tolerating nulls.
func items(data map[string]models.JSONObject) []map[string]interface{} {
	getData, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := getData[ClassName].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func num(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

// formatGraphQLErrors returns compact string with messages extracted for logging.
func formatGraphQLErrors(errs interface{}) string {
	if b, err := json.Marshal(errs); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", errs)
}
