package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultQdrantAddress is the local Qdrant gRPC endpoint.
const DefaultQdrantAddress = "localhost:6334"

// QdrantIndex keeps vectors in a collection created for this index alone and dropped on Close.
// Point IDs are insertion positions.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	collection  string
	dimensions  int
	size        int
	mu          sync.RWMutex
}

// NewQdrantIndex connects to addr and creates a dot-product collection of the given dimension.
func NewQdrantIndex(ctx context.Context, addr string, dimensions int) (*QdrantIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if addr == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	q := &QdrantIndex{
		conn:        conn,
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		collection:  "kanren-" + uuid.New().String(),
		dimensions:  dimensions,
	}
	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimensions),
					Distance: qdrant.Distance_Dot,
				},
			},
		},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create qdrant collection: %w", err)
	}
	return q, nil
}

// Type returns the index type identifier.
func (q *QdrantIndex) Type() string {
	return string(IndexTypeQdrant)
}

// Add upserts vectors with IDs continuing from the current size and waits for them to be searchable.
func (q *QdrantIndex) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	points := make([]*qdrant.PointStruct, len(vectors))
	for i, vec := range vectors {
		if len(vec) != q.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), q.dimensions)
		}
		points[i] = &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Num{Num: uint64(q.size + i)},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: vec},
				},
			},
		}
	}
	wait := true
	if _, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upsert qdrant points: %w", err)
	}
	q.size += len(vectors)
	return nil
}

// Search returns the top-k positions by dot product.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	if len(query) != q.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), q.dimensions)
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if k <= 0 || q.size == 0 {
		return nil, nil
	}
	resp, err := q.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         query,
		Limit:          uint64(k),
	})
	if err != nil {
		return nil, fmt.Errorf("search qdrant: %w", err)
	}
	results := make([]VectorResult, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		results = append(results, VectorResult{
			Index: int(p.GetId().GetNum()),
			Score: float64(p.GetScore()),
		})
	}
	sortResults(results)
	return results, nil
}

// Size returns the number of vectors added.
func (q *QdrantIndex) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Close drops the collection and closes the connection.
func (q *QdrantIndex) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.conn == nil {
		return nil
	}
	_, dropErr := q.collections.Delete(context.Background(), &qdrant.DeleteCollection{CollectionName: q.collection})
	closeErr := q.conn.Close()
	q.conn = nil
	if dropErr != nil {
		return fmt.Errorf("drop qdrant collection: %w", dropErr)
	}
	return closeErr
}
