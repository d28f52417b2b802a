package vectorindex

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	// Payload keys reserved by the adapter.
	PayloadVectorID  = "vector_id"
	PayloadNamespace = "namespace"

	defaultQdrantAddress = "localhost:6334"
	upsertBatchSize      = 256
)

// QdrantConfig configures the gRPC connection and target collection.
type QdrantConfig struct {
	Address    string
	Collection string
	Dimensions uint64
	APIKey     string
	TLS        bool
}

// Qdrant stores records as points whose ids are UUIDv5 digests of the record id.
// The original id is kept in the payload so hits keep their "{job_id}__{n}" form.
type Qdrant struct {
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	conn        *grpc.ClientConn

	collection string
	dimensions uint64
	apiKey     string
	logger     *zap.Logger
}

// NewQdrant connects to qdrant and makes sure the collection exists.
func NewQdrant(ctx context.Context, cfg QdrantConfig, logger *zap.Logger) (*Qdrant, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	address := cfg.Address
	if address == "" {
		address = defaultQdrantAddress
	}

	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s: %w", address, err)
	}

	q := newQdrant(qdrant.NewPointsClient(conn), qdrant.NewCollectionsClient(conn), cfg, logger)
	q.conn = conn

	if err := q.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return q, nil
}

func newQdrant(points qdrant.PointsClient, collections qdrant.CollectionsClient, cfg QdrantConfig, logger *zap.Logger) *Qdrant {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Qdrant{
		points:      points,
		collections: collections,
		collection:  cfg.Collection,
		dimensions:  cfg.Dimensions,
		apiKey:      cfg.APIKey,
		logger:      logger.With(zap.String("collection", cfg.Collection)),
	}
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	ctx = q.withAuth(ctx)

	_, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: q.collection})
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("getting collection %s: %w", q.collection, err)
	}
	if q.dimensions == 0 {
		return fmt.Errorf("collection %s does not exist and vector dimensions are not configured", q.collection)
	}

	q.logger.Info("collection not found, creating it", zap.Uint64("dimensions", q.dimensions))

	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     q.dimensions,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", q.collection, err)
	}

	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, records []Record) error {
	ctx = q.withAuth(ctx)

	for start := 0; start < len(records); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(records))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, r := range records[start:end] {
			payload, err := toPayload(r)
			if err != nil {
				return err
			}

			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(PointID(r.ID)),
				Vectors: qdrant.NewVectors(r.Values...),
				Payload: payload,
			})
		}

		resp, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upserting points: %w", err)
		}

		st := resp.GetResult().GetStatus()
		if st != qdrant.UpdateStatus_Acknowledged && st != qdrant.UpdateStatus_Completed {
			return fmt.Errorf("upserting points: unexpected status %s", st)
		}

		q.logger.Debug("upserted points", zap.Int("count", len(points)))
	}

	return nil
}

func (q *Qdrant) Query(ctx context.Context, query Query) ([]Hit, error) {
	if query.TopK <= 0 {
		return nil, nil
	}

	filter, err := toFilter(query.Filter, query.Namespace)
	if err != nil {
		return nil, err
	}

	resp, err := q.points.Search(q.withAuth(ctx), &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         query.Vector,
		Filter:         filter,
		Limit:          uint64(query.TopK),
		// Payload is always requested: the record id lives there.
		WithPayload: &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		WithVectors: &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: query.IncludeValues}},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		if point.GetPayload() == nil {
			return nil, fmt.Errorf("point %s: %w: payload is nil", point.GetId().GetUuid(), ErrMalformedHit)
		}

		md := fromPayload(point.GetPayload())
		id, _ := md[PayloadVectorID].(string)
		if id == "" {
			id = point.GetId().GetUuid()
		}
		delete(md, PayloadVectorID)
		delete(md, PayloadNamespace)

		hit := Hit{ID: id, Score: point.GetScore()}
		if query.IncludeValues {
			hit.Values = denseValues(point.GetVectors().GetVector())
		}
		if query.IncludeMetadata {
			hit.Metadata = md
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

func (q *Qdrant) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

func (q *Qdrant) withAuth(ctx context.Context) context.Context {
	if q.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", q.apiKey)
}

// denseValues reads the dense vector, falling back to the legacy flat field
// filled by older servers.
func denseValues(v *qdrant.VectorOutput) []float32 {
	if dense := v.GetDense().GetData(); len(dense) > 0 {
		return dense
	}
	return v.GetData()
}

// PointID maps an arbitrary record id onto the UUID space qdrant accepts.
func PointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(id))).String()
}
