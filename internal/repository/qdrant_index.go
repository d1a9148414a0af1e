package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/minqi/snaplore/internal/logger"
)

const defaultVectorDimension = 1536

// QdrantConnectionConfig holds configuration for the Qdrant connection.
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantIndex implements VectorIndex backed by a Qdrant collection.
// When the backend is unreachable at construction time the index enters a
// disconnected mode: every operation logs a warning and no-ops, so the rest
// of the system keeps running without vector search.
type QdrantIndex struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
	connected       bool
}

// NewQdrantIndex creates a new QdrantIndex.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key).
func NewQdrantIndex(cfg *QdrantConnectionConfig) (*QdrantIndex, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption

	useTLS := cfg.UseTLS || cfg.APIKey != ""
	if useTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		creds := credentials.NewTLS(tlsConfig)
		opts = append(opts, grpc.WithTransportCredentials(creds))

		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	idx := &QdrantIndex{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}

	// Probe reachability once. A failed probe does not fail construction;
	// the index runs disconnected and callers proceed without vectors.
	probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.ensureCollection(probeCtx); err != nil {
		logger.Warn("qdrant unreachable, vector index disconnected: %v", err)
		idx.connected = false
		return idx, nil
	}
	idx.connected = true

	return idx, nil
}

// Close closes the gRPC connection.
func (r *QdrantIndex) Close() error {
	return r.conn.Close()
}

// Connected reports whether the backend responded during construction.
func (r *QdrantIndex) Connected() bool {
	return r.connected
}

// ensureCollection creates the collection if it doesn't exist.
// The collection uses inner-product distance over normalized-scale
// embeddings, matching the embedding provider's contract.
func (r *QdrantIndex) ensureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
			}
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Dot,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	if paramsMap := vectors.GetParamsMap(); paramsMap != nil {
		for _, vectorParams := range paramsMap.GetMap() {
			if vectorParams == nil {
				continue
			}
			if size := vectorParams.GetSize(); size > 0 {
				return size, true
			}
		}
	}

	return 0, false
}

// Upsert stores an embedding with its identifying payload and returns the
// generated point ID. Disconnected: returns an empty ID and no error.
func (r *QdrantIndex) Upsert(ctx context.Context, entityID, entityType, ownerID string, embedding []float32) (string, error) {
	if !r.connected {
		logger.CtxWarn(ctx, "vector index disconnected, skipping upsert for %s %s", entityType, entityID)
		return "", nil
	}

	pointID := uuid.New().String()

	points := []*pb.PointStruct{
		{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: pointID,
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: embedding,
					},
				},
			},
			Payload: map[string]*pb.Value{
				"entity_id":   {Kind: &pb.Value_StringValue{StringValue: entityID}},
				"entity_type": {Kind: &pb.Value_StringValue{StringValue: entityType}},
				"owner_id":    {Kind: &pb.Value_StringValue{StringValue: ownerID}},
			},
		},
	}

	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points:         points,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert point: %w", err)
	}

	return pointID, nil
}

// Search performs an owner-scoped similarity search over one entity type.
// Disconnected: returns no hits and no error.
func (r *QdrantIndex) Search(ctx context.Context, embedding []float32, ownerIDs []string, entityType string, limit int) ([]VectorHit, error) {
	if !r.connected {
		logger.CtxWarn(ctx, "vector index disconnected, search returns nothing")
		return nil, nil
	}

	req := &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         embedding,
		Limit:          uint64(limit),
		Filter:         buildScopeFilter(ownerIDs, entityType),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}

	resp, err := r.pointsClient.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]VectorHit, len(resp.Result))
	for i, scored := range resp.Result {
		hit := VectorHit{
			VectorID: scored.Id.GetUuid(),
			Score:    scored.Score,
		}
		if scored.Payload != nil {
			if v, ok := scored.Payload["entity_id"]; ok {
				hit.EntityID = v.GetStringValue()
			}
			if v, ok := scored.Payload["entity_type"]; ok {
				hit.EntityType = v.GetStringValue()
			}
			if v, ok := scored.Payload["owner_id"]; ok {
				hit.OwnerID = v.GetStringValue()
			}
		}
		results[i] = hit
	}

	return results, nil
}

func buildScopeFilter(ownerIDs []string, entityType string) *pb.Filter {
	conditions := []*pb.Condition{
		{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "entity_type",
					Match: &pb.Match{
						MatchValue: &pb.Match_Keyword{Keyword: entityType},
					},
				},
			},
		},
	}

	switch len(ownerIDs) {
	case 0:
		// no owner restriction
	case 1:
		conditions = append(conditions, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "owner_id",
					Match: &pb.Match{
						MatchValue: &pb.Match_Keyword{Keyword: ownerIDs[0]},
					},
				},
			},
		})
	default:
		conditions = append(conditions, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "owner_id",
					Match: &pb.Match{
						MatchValue: &pb.Match_Keywords{
							Keywords: &pb.RepeatedStrings{Strings: ownerIDs},
						},
					},
				},
			},
		})
	}

	return &pb.Filter{Must: conditions}
}

// Remove deletes a point by its vector ID.
// Disconnected: no-ops.
func (r *QdrantIndex) Remove(ctx context.Context, vectorID string) error {
	if !r.connected {
		logger.CtxWarn(ctx, "vector index disconnected, skipping remove for %s", vectorID)
		return nil
	}

	uid, err := uuid.Parse(vectorID)
	if err != nil {
		return fmt.Errorf("invalid vector ID: %w", err)
	}

	_, err = r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}
