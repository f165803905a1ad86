package storage

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/jetgogoing/sage/pkg/config"
)

// qdrantIndex delegates vector search to an external Qdrant instance.
// Adapted from kadirpekel/hector's pkg/databases.qdrantDatabaseProvider,
// trimmed to the Upsert/Search/Delete/DeleteCollection shape the
// Storage Layer needs and returning sage's IndexResult instead of
// databases.SearchResult.
type qdrantIndex struct {
	client *qdrant.Client
	host   string
	port   int
}

func newQdrantIndex(cfg config.VectorIndexConfig) (VectorIndex, error) {
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client for %s:%d: %w", cfg.Host, port, err)
	}
	return &qdrantIndex{client: client, host: cfg.Host, port: port}, nil
}

func (q *qdrantIndex) ensureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("connect to qdrant at %s:%d: %w", q.host, q.port, err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	return nil
}

func (q *qdrantIndex) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	if err := q.ensureCollection(ctx, collection, uint64(len(vector))); err != nil {
		return err
	}

	payload := make(map[string]*qdrant.Value, len(metadata))
	for k, v := range metadata {
		val, err := qdrant.NewValue(v)
		if err != nil {
			continue
		}
		payload[k] = val
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert point %s: %w", id, err)
	}
	return nil
}

func (q *qdrantIndex) Search(ctx context.Context, collection string, vector []float32, topK int) ([]IndexResult, error) {
	resp, err := q.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	out := make([]IndexResult, 0, len(resp.Result))
	for _, p := range resp.Result {
		var id string
		if p.Id != nil {
			switch idType := p.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				id = idType.Uuid
			case *qdrant.PointId_Num:
				id = fmt.Sprintf("%d", idType.Num)
			}
		}
		out = append(out, IndexResult{ID: id, Score: float64(p.Score)})
	}
	return out, nil
}

func (q *qdrantIndex) Delete(ctx context.Context, collection string, id string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete point %s: %w", id, err)
	}
	return nil
}

func (q *qdrantIndex) DeleteCollection(ctx context.Context, collection string) error {
	if err := q.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	return nil
}

func (q *qdrantIndex) Close() error {
	return q.client.Close()
}
