package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantStore keeps memory passages in a Qdrant collection reached
// over gRPC. Passage text travels in the point payload.
type QdrantStore struct {
	conn       *grpc.ClientConn
	points     qdrantclient.PointsClient
	collection string
	embedder   Embedder
}

func NewQdrantStore(addr, collection string, embedder Embedder) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("qdrant memory: nil embedder")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("qdrant memory: empty collection name")
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	return &QdrantStore{
		conn:       conn,
		points:     qdrantclient.NewPointsClient(conn),
		collection: collection,
		embedder:   embedder,
	}, nil
}

func (s *QdrantStore) Add(ctx context.Context, text string, metadata map[string]string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("add memory: empty text")
	}

	vector, err := s.embedder.Embed(ctx, trimmed)
	if err != nil {
		return fmt.Errorf("add memory: %w", err)
	}

	payload := map[string]*qdrantclient.Value{
		"text": {Kind: &qdrantclient.Value_StringValue{StringValue: trimmed}},
	}
	for k, v := range metadata {
		payload[k] = &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: v}}
	}

	point := &qdrantclient.PointStruct{
		Id: &qdrantclient.PointId{
			PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: uuid.NewString()},
		},
		Vectors: &qdrantclient.Vectors{
			VectorsOptions: &qdrantclient.Vectors_Vector{
				Vector: &qdrantclient.Vector{Data: vector},
			},
		},
		Payload: payload,
	}

	_, err = s.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrantclient.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("add memory: upsert: %w", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}

	resp, err := s.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Include{
				Include: &qdrantclient.PayloadIncludeSelector{
					Fields: []string{"text"},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}

	results := make([]Result, 0, len(resp.Result))
	for _, point := range resp.Result {
		text := ""
		if v, ok := point.Payload["text"]; ok {
			text = v.GetStringValue()
		}
		if text == "" {
			continue
		}
		results = append(results, Result{Text: text, Score: float64(point.GetScore())})
	}
	return results, nil
}

func (s *QdrantStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
