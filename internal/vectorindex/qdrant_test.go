package vectorindex

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakePoints struct {
	qdrant.PointsClient

	search    *qdrant.SearchPoints
	searchMD  metadata.MD
	searchRes *qdrant.SearchResponse
	searchErr error

	upserts   []*qdrant.UpsertPoints
	upsertRes *qdrant.PointsOperationResponse
}

func (f *fakePoints) Search(ctx context.Context, in *qdrant.SearchPoints, _ ...grpc.CallOption) (*qdrant.SearchResponse, error) {
	f.search = in
	f.searchMD, _ = metadata.FromOutgoingContext(ctx)
	return f.searchRes, f.searchErr
}

func (f *fakePoints) Upsert(_ context.Context, in *qdrant.UpsertPoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	f.upserts = append(f.upserts, in)
	return f.upsertRes, nil
}

type fakeCollections struct {
	qdrant.CollectionsClient

	getErr  error
	created *qdrant.CreateCollection
}

func (f *fakeCollections) Get(context.Context, *qdrant.GetCollectionInfoRequest, ...grpc.CallOption) (*qdrant.GetCollectionInfoResponse, error) {
	return &qdrant.GetCollectionInfoResponse{}, f.getErr
}

func (f *fakeCollections) Create(_ context.Context, in *qdrant.CreateCollection, _ ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	f.created = in
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func TestQdrantQueryDecodesHits(t *testing.T) {
	t.Parallel()

	points := &fakePoints{searchRes: &qdrant.SearchResponse{Result: []*qdrant.ScoredPoint{
		{
			Id:    qdrant.NewID(PointID("j1__0")),
			Score: 0.9,
			Payload: map[string]*qdrant.Value{
				PayloadVectorID:  stringValue("j1__0"),
				PayloadNamespace: stringValue("kr"),
				"company_name":   stringValue("Acme"),
				"is_remote":      {Kind: &qdrant.Value_BoolValue{BoolValue: true}},
			},
		},
		{
			Id:      qdrant.NewID(PointID("raw")),
			Score:   0.1,
			Payload: map[string]*qdrant.Value{"job_id": stringValue("j2")},
		},
	}}}

	q := newQdrant(points, &fakeCollections{}, QdrantConfig{Collection: "jobs", APIKey: "secret"}, nil)

	hits, err := q.Query(context.Background(), Query{
		Vector:          []float32{1, 0},
		TopK:            5,
		Filter:          map[string]any{"job_type": "parttime", "is_remote": true},
		IncludeMetadata: true,
		Namespace:       "kr",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}

	if hits[0].ID != "j1__0" || hits[0].Score != 0.9 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
	if hits[0].Metadata["company_name"] != "Acme" || hits[0].Metadata["is_remote"] != true {
		t.Fatalf("unexpected metadata: %+v", hits[0].Metadata)
	}
	if _, ok := hits[0].Metadata[PayloadVectorID]; ok {
		t.Fatalf("reserved payload keys must be stripped: %+v", hits[0].Metadata)
	}

	if hits[1].ID != PointID("raw") {
		t.Fatalf("expected point uuid as id fallback, got %q", hits[1].ID)
	}

	if points.search.GetLimit() != 5 || points.search.GetCollectionName() != "jobs" {
		t.Fatalf("unexpected search request: %+v", points.search)
	}

	must := points.search.GetFilter().GetMust()
	if len(must) != 3 {
		t.Fatalf("expected 3 conditions, got %d", len(must))
	}
	if key := must[0].GetField().GetKey(); key != "is_remote" {
		t.Fatalf("conditions must be sorted, first key %q", key)
	}
	if !must[0].GetField().GetMatch().GetBoolean() {
		t.Fatalf("expected boolean match for is_remote")
	}
	if got := must[1].GetField().GetMatch().GetKeyword(); got != "parttime" {
		t.Fatalf("unexpected job_type match %q", got)
	}
	if got := must[2].GetField().GetKey(); got != PayloadNamespace {
		t.Fatalf("expected namespace condition last, got %q", got)
	}

	if got := points.searchMD.Get("api-key"); len(got) != 1 || got[0] != "secret" {
		t.Fatalf("expected api key metadata, got %v", got)
	}
}

func TestQdrantQueryWithoutFilter(t *testing.T) {
	t.Parallel()

	points := &fakePoints{searchRes: &qdrant.SearchResponse{}}
	q := newQdrant(points, &fakeCollections{}, QdrantConfig{Collection: "jobs"}, nil)

	if _, err := q.Query(context.Background(), Query{Vector: []float32{1}, TopK: 2000, IncludeValues: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if points.search.GetFilter() != nil {
		t.Fatalf("expected no filter, got %+v", points.search.GetFilter())
	}
	if !points.search.GetWithVectors().GetEnable() {
		t.Fatal("expected vectors to be requested")
	}
	if points.searchMD.Get("api-key") != nil {
		t.Fatal("api key must not be sent when unset")
	}
}

func TestQdrantQueryReadsVectors(t *testing.T) {
	t.Parallel()

	vectors := func(out *qdrant.VectorOutput) *qdrant.VectorsOutput {
		return &qdrant.VectorsOutput{VectorsOptions: &qdrant.VectorsOutput_Vector{Vector: out}}
	}

	points := &fakePoints{searchRes: &qdrant.SearchResponse{Result: []*qdrant.ScoredPoint{
		{
			Id:      qdrant.NewID(PointID("dense__0")),
			Payload: map[string]*qdrant.Value{PayloadVectorID: stringValue("dense__0")},
			Vectors: vectors(&qdrant.VectorOutput{
				Vector: &qdrant.VectorOutput_Dense{Dense: &qdrant.DenseVector{Data: []float32{0.6, 0.8}}},
			}),
		},
		{
			Id:      qdrant.NewID(PointID("legacy__0")),
			Payload: map[string]*qdrant.Value{PayloadVectorID: stringValue("legacy__0")},
			Vectors: vectors(&qdrant.VectorOutput{Data: []float32{1, 0}}),
		},
		{
			Id:      qdrant.NewID(PointID("none__0")),
			Payload: map[string]*qdrant.Value{PayloadVectorID: stringValue("none__0")},
		},
	}}}
	q := newQdrant(points, &fakeCollections{}, QdrantConfig{Collection: "jobs"}, nil)

	hits, err := q.Query(context.Background(), Query{Vector: []float32{1, 0}, TopK: 3, IncludeValues: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}

	if !reflect.DeepEqual(hits[0].Values, []float32{0.6, 0.8}) {
		t.Fatalf("expected dense values, got %v", hits[0].Values)
	}
	if !reflect.DeepEqual(hits[1].Values, []float32{1, 0}) {
		t.Fatalf("expected legacy values, got %v", hits[1].Values)
	}
	if len(hits[2].Values) != 0 {
		t.Fatalf("expected no values, got %v", hits[2].Values)
	}
}

func TestQdrantQueryErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		points *fakePoints
		query  Query
		target error
	}{
		{
			name:   "transport failure",
			points: &fakePoints{searchErr: status.Error(codes.Unavailable, "down")},
			query:  Query{Vector: []float32{1}, TopK: 1},
		},
		{
			name: "nil payload",
			points: &fakePoints{searchRes: &qdrant.SearchResponse{Result: []*qdrant.ScoredPoint{
				{Id: qdrant.NewID(PointID("x"))},
			}}},
			query:  Query{Vector: []float32{1}, TopK: 1},
			target: ErrMalformedHit,
		},
		{
			name:   "unsupported filter value",
			points: &fakePoints{searchRes: &qdrant.SearchResponse{}},
			query:  Query{Vector: []float32{1}, TopK: 1, Filter: map[string]any{"salary": 1.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := newQdrant(tt.points, &fakeCollections{}, QdrantConfig{Collection: "jobs"}, nil)
			_, err := q.Query(context.Background(), tt.query)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestQdrantUpsert(t *testing.T) {
	t.Parallel()

	points := &fakePoints{upsertRes: &qdrant.PointsOperationResponse{
		Result: &qdrant.UpdateResult{Status: qdrant.UpdateStatus_Completed},
	}}
	q := newQdrant(points, &fakeCollections{}, QdrantConfig{Collection: "jobs"}, nil)

	err := q.Upsert(context.Background(), []Record{{
		ID:        "j1__0",
		Values:    []float32{1, 0},
		Metadata:  map[string]any{"job_id": "j1", "is_remote": false, "rank": 2},
		Namespace: "kr",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(points.upserts) != 1 || len(points.upserts[0].GetPoints()) != 1 {
		t.Fatalf("expected one upsert with one point, got %+v", points.upserts)
	}

	point := points.upserts[0].GetPoints()[0]
	if point.GetId().GetUuid() != PointID("j1__0") {
		t.Fatalf("unexpected point id %q", point.GetId().GetUuid())
	}

	payload := point.GetPayload()
	if payload[PayloadVectorID].GetStringValue() != "j1__0" || payload[PayloadNamespace].GetStringValue() != "kr" {
		t.Fatalf("reserved payload keys not set: %+v", payload)
	}
	if payload["rank"].GetIntegerValue() != 2 || payload["job_id"].GetStringValue() != "j1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestQdrantUpsertRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	points := &fakePoints{upsertRes: &qdrant.PointsOperationResponse{
		Result: &qdrant.UpdateResult{Status: qdrant.UpdateStatus_UnknownUpdateStatus},
	}}
	q := newQdrant(points, &fakeCollections{}, QdrantConfig{Collection: "jobs"}, nil)

	if err := q.Upsert(context.Background(), []Record{{ID: "a", Values: []float32{1}}}); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestQdrantEnsureCollection(t *testing.T) {
	t.Parallel()

	collections := &fakeCollections{getErr: status.Error(codes.NotFound, "missing")}
	q := newQdrant(&fakePoints{}, collections, QdrantConfig{Collection: "jobs", Dimensions: 768}, nil)

	if err := q.ensureCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if collections.created == nil {
		t.Fatal("expected collection to be created")
	}
	if size := collections.created.GetVectorsConfig().GetParams().GetSize(); size != 768 {
		t.Fatalf("unexpected vector size %d", size)
	}

	existing := newQdrant(&fakePoints{}, &fakeCollections{}, QdrantConfig{Collection: "jobs"}, nil)
	if err := existing.ensureCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error for existing collection: %v", err)
	}

	missingDims := newQdrant(&fakePoints{}, &fakeCollections{getErr: status.Error(codes.NotFound, "missing")}, QdrantConfig{Collection: "jobs"}, nil)
	if err := missingDims.ensureCollection(context.Background()); err == nil {
		t.Fatal("expected error when dimensions are unknown")
	}
}

func TestPointIDIsDeterministic(t *testing.T) {
	t.Parallel()

	if PointID("j1__0") != PointID(" j1__0 ") {
		t.Fatal("expected ids to be trimmed before hashing")
	}
	if PointID("j1__0") == PointID("j1__1") {
		t.Fatal("expected distinct ids to map to distinct points")
	}
}
