package source

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/observability"
)

// DefaultMongoCollection is used when no collection is configured.
const DefaultMongoCollection = "graphs"

// finder is the subset of *mongo.Collection used by MongoSource.
type finder interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// graphDocument is one stored variant.
type graphDocument struct {
	Variant string      `bson:"variant"`
	Graph   graph.Input `bson:"graph"`
}

// MongoSource reads variants from a collection of
// {variant: "filtered", graph: {nodes: [...], edges: [...]}} documents.
type MongoSource struct {
	coll   finder
	client *mongo.Client
	name   string
}

// NewMongoSource connects to uri and reads from database.collection.
func NewMongoSource(ctx context.Context, uri, database, collection string) (*MongoSource, error) {
	if collection == "" {
		collection = DefaultMongoCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.Wrap(apperrors.ErrCodeNetwork, err, "ping mongo")
	}
	return &MongoSource{
		coll:   client.Database(database).Collection(collection),
		client: client,
		name:   "mongo:" + database + "." + collection,
	}, nil
}

func (s *MongoSource) Name() string { return s.name }

// Fetch loads the variant's document and re-encodes its graph as JSON.
func (s *MongoSource) Fetch(ctx context.Context, v Variant) ([]byte, error) {
	hooks := observability.Load()
	hooks.OnFetchStart(ctx, s.Name(), v.String())
	start := time.Now()

	data, err := s.fetch(ctx, v)
	hooks.OnFetchComplete(ctx, s.Name(), v.String(), len(data), time.Since(start), err)
	return data, err
}

func (s *MongoSource) fetch(ctx context.Context, v Variant) ([]byte, error) {
	var doc graphDocument
	err := s.coll.FindOne(ctx, bson.M{"variant": v.String()}).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, err, "variant %s not found in %s", v, s.name)
	case err != nil:
		return nil, apperrors.Wrap(apperrors.ErrCodeNetwork, err, "find variant %s", v)
	}
	data, err := graph.MarshalInput(doc.Graph)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, err, "encode variant %s", v)
	}
	return data, nil
}

// Close disconnects the client, if this source owns one.
func (s *MongoSource) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

var _ Source = (*MongoSource)(nil)
