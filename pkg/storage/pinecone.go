package storage

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jetgogoing/sage/pkg/config"
)

// pineconeIndex delegates vector search to a Pinecone index. Adapted
// from kadirpekel/hector's pkg/databases.pineconeDatabaseProvider; the
// hybrid/RRF keyword-fusion logic there is dropped since the Hybrid
// Scorer (pkg/scoring) already fuses keyword and vector signal above
// this layer.
type pineconeIndex struct {
	client    *pinecone.Client
	indexName string
}

func newPineconeIndex(cfg config.VectorIndexConfig) (VectorIndex, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone vector index requires an API key")
	}
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}
	indexName := cfg.Collection
	if indexName == "" {
		indexName = "sage-conversations"
	}
	return &pineconeIndex{client: client, indexName: indexName}, nil
}

func (p *pineconeIndex) conn(ctx context.Context, collection string) (*pinecone.IndexConnection, error) {
	name := p.indexName
	if collection != "" {
		name = collection
	}
	idx, err := p.client.DescribeIndex(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("describe index %s: %w", name, err)
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: idx.Host})
	if err != nil {
		return nil, fmt.Errorf("connect to index %s: %w", name, err)
	}
	return conn, nil
}

func (p *pineconeIndex) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	conn, err := p.conn(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	var meta *pinecone.Metadata
	if len(metadata) > 0 {
		meta, err = structpb.NewStruct(metadata)
		if err != nil {
			return fmt.Errorf("convert metadata: %w", err)
		}
	}

	_, err = conn.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: vector, Metadata: meta}})
	if err != nil {
		return fmt.Errorf("upsert vector %s: %w", id, err)
	}
	return nil
}

func (p *pineconeIndex) Search(ctx context.Context, collection string, vector []float32, topK int) ([]IndexResult, error) {
	conn, err := p.conn(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector: vector,
		TopK:   uint32(topK),
	})
	if err != nil {
		return nil, fmt.Errorf("query pinecone: %w", err)
	}

	out := make([]IndexResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Vector == nil {
			continue
		}
		out = append(out, IndexResult{ID: m.Vector.Id, Score: float64(m.Score)})
	}
	return out, nil
}

func (p *pineconeIndex) Delete(ctx context.Context, collection string, id string) error {
	conn, err := p.conn(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("delete vector %s: %w", id, err)
	}
	return nil
}

func (p *pineconeIndex) DeleteCollection(ctx context.Context, collection string) error {
	return fmt.Errorf("pinecone index deletion is not supported via the data-plane API; delete %s through the Pinecone console", collection)
}

func (p *pineconeIndex) Close() error {
	return nil
}
