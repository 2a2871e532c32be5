package issuance

import (
	"context"
	"errors"
	"time"

	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/trace"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/codes"
)

// SessionStore is the persistence boundary for IssuanceSession. It enforces
// uniqueness of the offer uri and of the live c_nonce per issuer through
// its backing indexes rather than in Go code.
type SessionStore interface {
	Create(ctx context.Context, session *IssuanceSession) error
	GetByID(ctx context.Context, issuerID, sessionID string) (*IssuanceSession, error)
	FindSingleByQuery(ctx context.Context, query SessionQuery) (*IssuanceSession, error)
	FindByOfferURI(ctx context.Context, issuerID, offerURI string) (*IssuanceSession, error)
	Update(ctx context.Context, session *IssuanceSession) error
}

// MongoSessionStore is the mongo-driver backed SessionStore.
type MongoSessionStore struct {
	coll   *mongo.Collection
	log    *logger.Log
	tracer *trace.Tracer
}

// NewMongoSessionStore selects the issuance_sessions collection on an
// already-connected client and ensures its indexes exist.
func NewMongoSessionStore(ctx context.Context, client *mongo.Client, tracer *trace.Tracer, log *logger.Log) (*MongoSessionStore, error) {
	log = log.New("session_store")

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	store := &MongoSessionStore{
		coll:   client.Database("oid4vci_issuer").Collection("issuance_sessions"),
		log:    log,
		tracer: tracer,
	}

	if err := store.createIndexes(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// createIndexes installs the two unique compound indexes, so a
// duplicate offer uri or a colliding live c_nonce fails at the database
// rather than racing in application code.
func (s *MongoSessionStore) createIndexes(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "issuance:store:create_indexes")
	defer span.End()

	offerURIUniq := mongo.IndexModel{
		Keys: bson.D{
			primitive.E{Key: "issuer_id", Value: 1},
			primitive.E{Key: "credential_offer_uri", Value: 1},
		},
		Options: options.Index().SetName("issuer_offer_uri_uniq").SetUnique(true),
	}

	cNonceUniq := mongo.IndexModel{
		Keys: bson.D{
			primitive.E{Key: "issuer_id", Value: 1},
			primitive.E{Key: "c_nonce", Value: 1},
		},
		Options: options.Index().
			SetName("issuer_c_nonce_uniq").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"c_nonce": bson.M{"$gt": ""}}),
	}

	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{offerURIUniq, cNonceUniq})
	return err
}

// Create inserts a newly built session. Session.ID must already be set.
func (s *MongoSessionStore) Create(ctx context.Context, session *IssuanceSession) error {
	ctx, span := s.tracer.Start(ctx, "issuance:store:create")
	defer span.End()

	s.log.Debug("creating session", "session_id", session.ID, "issuer_id", session.IssuerID)

	if _, err := s.coll.InsertOne(ctx, session); err != nil {
		span.SetStatus(codes.Error, err.Error())
		if mongo.IsDuplicateKeyError(err) {
			return newError(ErrCodeInvalidOffer, err)
		}
		return err
	}
	return nil
}

// GetByID fetches a session by its primary key, scoped to an issuer.
func (s *MongoSessionStore) GetByID(ctx context.Context, issuerID, sessionID string) (*IssuanceSession, error) {
	ctx, span := s.tracer.Start(ctx, "issuance:store:get_by_id")
	defer span.End()

	filter := bson.M{"_id": sessionID, "issuer_id": issuerID}

	session := &IssuanceSession{}
	if err := s.coll.FindOne(ctx, filter).Decode(session); err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, newError(ErrCodeNotFound, errSessionNotFound)
		}
		return nil, err
	}
	return session, nil
}

// FindByOfferURI fetches a session by the offer uri its payload was
// published at.
func (s *MongoSessionStore) FindByOfferURI(ctx context.Context, issuerID, offerURI string) (*IssuanceSession, error) {
	ctx, span := s.tracer.Start(ctx, "issuance:store:find_by_offer_uri")
	defer span.End()

	filter := bson.M{"credential_offer_uri": offerURI}
	if issuerID != "" {
		filter["issuer_id"] = issuerID
	}

	session := &IssuanceSession{}
	if err := s.coll.FindOne(ctx, filter).Decode(session); err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, newError(ErrCodeNotFound, errSessionNotFound)
		}
		return nil, err
	}
	return session, nil
}

// FindSingleByQuery looks up exactly one session by (issuer_id?, c_nonce).
// More than one match means two live sessions share a nonce, which is
// reported rather than silently picking a row.
func (s *MongoSessionStore) FindSingleByQuery(ctx context.Context, query SessionQuery) (*IssuanceSession, error) {
	ctx, span := s.tracer.Start(ctx, "issuance:store:find_single_by_query")
	defer span.End()

	filter := bson.M{"c_nonce": query.CNonce}
	if query.IssuerID != "" {
		filter["issuer_id"] = query.IssuerID
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*IssuanceSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}

	if len(sessions) == 0 {
		return nil, newError(ErrCodeNotFound, errSessionNotFound)
	}
	if len(sessions) > 1 {
		return nil, newError(ErrCodeAmbiguousSession, errAmbiguousSession)
	}

	return sessions[0], nil
}

// Update persists a mutated session in full. Callers are responsible for
// the get-mutate-update discipline; this is a plain
// replace, not a compare-and-swap.
func (s *MongoSessionStore) Update(ctx context.Context, session *IssuanceSession) error {
	ctx, span := s.tracer.Start(ctx, "issuance:store:update")
	defer span.End()

	filter := bson.M{"_id": session.ID, "issuer_id": session.IssuerID}
	if _, err := s.coll.ReplaceOne(ctx, filter, session); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
