package issuance

import (
	"context"
	"errors"
	"time"

	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/model"
	"oid4vci-issuer/pkg/trace"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/codes"
)

// MongoIssuerRegistry is the mongo-driver backed IssuerRegistry, reading the
// same issuers collection an administrative tool populates with each
// issuer's supported credential configurations.
type MongoIssuerRegistry struct {
	coll   *mongo.Collection
	log    *logger.Log
	tracer *trace.Tracer
}

// NewMongoIssuerRegistry selects the issuer_records collection on an already
// connected client, sharing the connection MongoSessionStore opened.
func NewMongoIssuerRegistry(client *mongo.Client, cfg *model.Cfg, tracer *trace.Tracer, log *logger.Log) *MongoIssuerRegistry {
	return &MongoIssuerRegistry{
		coll:   client.Database("oid4vci_issuer").Collection("issuer_records"),
		log:    log.New("issuer_registry"),
		tracer: tracer,
	}
}

// IssuerByID fetches an issuer's supported-configuration record.
func (r *MongoIssuerRegistry) IssuerByID(ctx context.Context, issuerID string) (*IssuerRecord, error) {
	ctx, span := r.tracer.Start(ctx, "issuance:issuer_registry:issuer_by_id")
	defer span.End()

	issuer := &IssuerRecord{}
	if err := r.coll.FindOne(ctx, bson.M{"issuer_id": issuerID}).Decode(issuer); err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, newError(ErrCodeNotFound, errSessionNotFound)
		}
		return nil, err
	}
	return issuer, nil
}

// Upsert replaces issuer's stored record, the administrative write path a
// deployment's provisioning tooling drives.
func (r *MongoIssuerRegistry) Upsert(ctx context.Context, issuer *IssuerRecord) error {
	ctx, span := r.tracer.Start(ctx, "issuance:issuer_registry:upsert")
	defer span.End()

	_, err := r.coll.ReplaceOne(ctx, bson.M{"issuer_id": issuer.IssuerID}, issuer, options.Replace().SetUpsert(true))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// EnsureIndexes creates the unique index on issuer_id.
func (r *MongoIssuerRegistry) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "issuer_id", Value: 1}},
		Options: options.Index().SetName("issuer_id_uniq").SetUnique(true),
	})
	return err
}
