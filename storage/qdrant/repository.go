// Package qdrant provides a storage.Repository backed by a Qdrant collection.
package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/poiesic/sqlrecall/core"
	"github.com/poiesic/sqlrecall/storage"
)

// Payload keys stored on every point.
const (
	payloadKind       = "kind"
	payloadContent    = "content"
	payloadQuestion   = "question"
	payloadSQL        = "sql"
	payloadRecordID   = "record_id"
	payloadInsertedAt = "inserted_at"
)

// pointNamespace seeds the UUIDv5 point IDs derived from record IDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/poiesic/sqlrecall/points"))

// Config holds the connection settings for a Qdrant server.
type Config struct {
	Host       string
	Port       int
	Collection string
	APIKey     string
	UseTLS     bool
}

// Repository implements storage.Repository using Qdrant.
// The collection is created on the first write, sized to the first vector seen.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
	logger     *slog.Logger

	mu        sync.Mutex
	dimension uint64
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new Qdrant repository. The gRPC connection is
// established lazily by the first call.
func NewRepository(cfg Config) (storage.Repository, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("%w: qdrant host and port are required", storage.ErrInvalidQuery)
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant collection is required", storage.ErrInvalidQuery)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.UseTLS {
		opts[0] = grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12}))
	}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	repo := newRepository(pb.NewCollectionsClient(conn), pb.NewPointsClient(conn), cfg.Collection)
	repo.conn = conn
	return repo, nil
}

func newRepository(collections pb.CollectionsClient, points pb.PointsClient, collection string) *Repository {
	return &Repository{
		client:     collections,
		points:     points,
		collection: collection,
		logger:     slog.Default().With("component", "qdrant", "collection", collection),
	}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance if it doesn't
// exist. An existing collection must have the requested vector size.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dimension == 0 {
		resp, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
			CollectionName: r.collection,
		})
		switch {
		case err == nil:
			r.dimension = resp.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		case status.Code(err) == codes.NotFound:
			if _, err := r.client.Create(ctx, &pb.CreateCollection{
				CollectionName: r.collection,
				VectorsConfig: &pb.VectorsConfig{
					Config: &pb.VectorsConfig_Params{
						Params: &pb.VectorParams{
							Size:     vectorSize,
							Distance: pb.Distance_Cosine,
						},
					},
				},
			}); err != nil {
				return fmt.Errorf("creating collection: %w", err)
			}
			r.logger.Info("created collection", "size", vectorSize)
			r.dimension = vectorSize
		default:
			return fmt.Errorf("getting collection info: %w", err)
		}
	}

	if r.dimension != vectorSize {
		return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, got %d",
			storage.ErrDimensionMismatch, r.collection, r.dimension, vectorSize)
	}
	return nil
}

// AddRecords upserts records as points keyed by a UUID derived from the record ID.
func (r *Repository) AddRecords(ctx context.Context, records ...*core.TrainingRecord) error {
	if len(records) == 0 {
		return nil
	}

	for _, record := range records {
		if err := core.ValidateTrainingRecord(record); err != nil {
			return err
		}
		if len(record.Vector) == 0 {
			return fmt.Errorf("%w: record %d has no vector", storage.ErrDimensionMismatch, record.Id)
		}
	}

	size := len(records[0].Vector)
	if err := r.EnsureCollection(ctx, uint64(size)); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, 0, len(records))
	for _, record := range records {
		if len(record.Vector) != size {
			return fmt.Errorf("%w: record %d has %d dimensions, collection has %d",
				storage.ErrDimensionMismatch, record.Id, len(record.Vector), size)
		}
		if record.InsertedAt.IsZero() {
			record.InsertedAt = time.Now().UTC()
		}
		points = append(points, recordToPoint(record))
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           pb.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// FindSimilar performs a semantic search, optionally filtered by kind.
func (r *Repository) FindSimilar(ctx context.Context, vector []float32, kind core.Kind, minScore float32, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if err := validateKindFilter(kind); err != nil {
		return nil, err
	}

	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter:         kindFilter(kind),
		ScoreThreshold: pb.PtrOf(minScore),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	results := make([]*core.SearchResult, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		record, err := payloadToRecord(point.GetPayload())
		if err != nil {
			return nil, err
		}
		results = append(results, &core.SearchResult{Record: record, Score: point.GetScore()})
	}
	return results, nil
}

// Count returns the exact number of points of kind.
func (r *Repository) Count(ctx context.Context, kind core.Kind) (int, error) {
	if err := validateKindFilter(kind); err != nil {
		return 0, err
	}

	resp, err := r.points.Count(ctx, &pb.CountPoints{
		CollectionName: r.collection,
		Filter:         kindFilter(kind),
		Exact:          pb.PtrOf(true),
	})
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}

	return int(resp.GetResult().GetCount()), nil
}

// DeleteKind removes every point of kind. storage.AllKinds drops the whole
// collection so the next write may use a different vector size.
func (r *Repository) DeleteKind(ctx context.Context, kind core.Kind) error {
	if err := validateKindFilter(kind); err != nil {
		return err
	}

	if kind == storage.AllKinds {
		r.mu.Lock()
		defer r.mu.Unlock()

		_, err := r.client.Delete(ctx, &pb.DeleteCollection{CollectionName: r.collection})
		if err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("deleting collection: %w", err)
		}
		r.dimension = 0
		return nil
	}

	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           pb.PtrOf(true),
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: kindFilter(kind),
			},
		},
	})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting points by kind: %w", err)
	}

	return nil
}

func validateKindFilter(kind core.Kind) error {
	if kind == storage.AllKinds || kind.Valid() {
		return nil
	}
	return fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ValidateKind(kind))
}

// kindFilter matches points of kind, or every point for storage.AllKinds.
func kindFilter(kind core.Kind) *pb.Filter {
	if kind == storage.AllKinds {
		return nil
	}
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: payloadKind,
						Match: &pb.Match{
							MatchValue: &pb.Match_Keyword{
								Keyword: kind.String(),
							},
						},
					},
				},
			},
		},
	}
}

// pointID derives the stable UUIDv5 for a record ID.
func pointID(id core.ID) string {
	return uuid.NewSHA1(pointNamespace, storage.MarshalID(id)).String()
}

func recordToPoint(record *core.TrainingRecord) *pb.PointStruct {
	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{
				Uuid: pointID(record.Id),
			},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{
					Data: record.Vector,
				},
			},
		},
		Payload: map[string]*pb.Value{
			payloadKind:       stringValue(record.Kind.String()),
			payloadContent:    stringValue(record.Content),
			payloadQuestion:   stringValue(record.Question),
			payloadSQL:        stringValue(record.SQL),
			payloadRecordID:   stringValue(strconv.FormatUint(uint64(record.Id), 10)),
			payloadInsertedAt: stringValue(record.InsertedAt.Format(time.RFC3339Nano)),
		},
	}
}

func payloadToRecord(payload map[string]*pb.Value) (*core.TrainingRecord, error) {
	kind, err := core.ParseKind(getStringValue(payload, payloadKind))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	id, err := strconv.ParseUint(getStringValue(payload, payloadRecordID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: record_id: %w", storage.ErrSerializationFailed, err)
	}

	record := &core.TrainingRecord{
		Id:       core.ID(id),
		Kind:     kind,
		Content:  getStringValue(payload, payloadContent),
		Question: getStringValue(payload, payloadQuestion),
		SQL:      getStringValue(payload, payloadSQL),
	}
	if ts := getStringValue(payload, payloadInsertedAt); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			record.InsertedAt = t
		}
	}
	return record, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}
