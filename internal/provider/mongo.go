package provider

import (
	"context"
	"time"

	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/internal/pipeline"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// DocumentStoreOptions name the database and collections read by the store
type DocumentStoreOptions struct {
	URI               string
	Database          string
	RecordCollections []string
	Tickets           string
	Feedback          string
	Professionals     string
}

// DefaultDocumentStoreOptions returns the marketplace collection names
func DefaultDocumentStoreOptions() DocumentStoreOptions {
	return DocumentStoreOptions{
		Database:          "marketplace",
		RecordCollections: []string{"jobs", "service_requests"},
		Tickets:           "support_tickets",
		Feedback:          "feedback",
		Professionals:     "professionals",
	}
}

// DocumentStore reads records, tickets, feedback and profiles from MongoDB
type DocumentStore struct {
	client *mongo.Client
	db     *mongo.Database
	opts   DocumentStoreOptions
	logger *zap.Logger
}

// ConnectDocumentStore opens a client and checks the server is reachable
func ConnectDocumentStore(ctx context.Context, opts DocumentStoreOptions, logger *zap.Logger) (*DocumentStore, error) {
	if opts.URI == "" {
		return nil, eris.Wrap(pipeline.ErrSourceNotConfigured, "document store: empty uri")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultDocumentStoreOptions()
	if opts.Database == "" {
		opts.Database = def.Database
	}
	if len(opts.RecordCollections) == 0 {
		opts.RecordCollections = def.RecordCollections
	}
	if opts.Tickets == "" {
		opts.Tickets = def.Tickets
	}
	if opts.Feedback == "" {
		opts.Feedback = def.Feedback
	}
	if opts.Professionals == "" {
		opts.Professionals = def.Professionals
	}

	client, err := mongo.Connect(options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, eris.Wrap(err, "document store: connect")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, eris.Wrap(err, "document store: ping")
	}

	logger.Info("document store: connected", zap.String("database", opts.Database))
	return &DocumentStore{
		client: client,
		db:     client.Database(opts.Database),
		opts:   opts,
		logger: logger,
	}, nil
}

// Close disconnects the client
func (s *DocumentStore) Close(ctx context.Context) error {
	return eris.Wrap(s.client.Disconnect(ctx), "document store: disconnect")
}

var creationKeys = []string{"createdAt", "created_at", "dataCriacao"}

// windowFilter matches BSON dates inside q under any creation key, plus
// every document with no date-typed creation key at all. Those carry
// strings, epoch numbers or nothing, and are narrowed by inWindow after
// decoding.
func windowFilter(q pipeline.Query) bson.M {
	clauses := bson.A{}
	notDated := bson.A{}
	for _, key := range creationKeys {
		clauses = append(clauses, bson.M{key: bson.M{"$gte": q.Since, "$lte": q.Until}})
		notDated = append(notDated, bson.M{key: bson.M{"$type": "date"}})
	}
	clauses = append(clauses, bson.M{"$nor": notDated})
	return bson.M{"$or": clauses}
}

// findInWindow runs windowFilter and applies the same window check the
// file source uses.
func (s *DocumentStore) findInWindow(ctx context.Context, collection string, q pipeline.Query) ([]model.GenericRecord, error) {
	docs, err := s.find(ctx, collection, windowFilter(q))
	if err != nil {
		return nil, err
	}
	return inWindow(docs, q), nil
}

// FetchRecords reads every record collection and concatenates the results
func (s *DocumentStore) FetchRecords(ctx context.Context, q pipeline.Query) ([]model.GenericRecord, error) {
	var all []model.GenericRecord
	for _, name := range s.opts.RecordCollections {
		docs, err := s.findInWindow(ctx, name, q)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if _, ok := doc["source"]; !ok {
				doc["source"] = name
			}
		}
		all = append(all, docs...)
	}
	return all, nil
}

// FetchTickets reads support tickets created in the window
func (s *DocumentStore) FetchTickets(ctx context.Context, q pipeline.Query) ([]model.GenericRecord, error) {
	return s.findInWindow(ctx, s.opts.Tickets, q)
}

// FetchFeedback reads ratings created in the window
func (s *DocumentStore) FetchFeedback(ctx context.Context, q pipeline.Query) ([]model.Feedback, error) {
	docs, err := s.findInWindow(ctx, s.opts.Feedback, q)
	if err != nil {
		return nil, err
	}
	out := make([]model.Feedback, 0, len(docs))
	for _, doc := range docs {
		out = append(out, FeedbackFromRecord(doc))
	}
	return out, nil
}

// FetchProfiles reads every professional profile
func (s *DocumentStore) FetchProfiles(ctx context.Context) ([]model.ProfessionalProfile, error) {
	docs, err := s.find(ctx, s.opts.Professionals, bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]model.ProfessionalProfile, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ProfileFromRecord(doc))
	}
	return out, nil
}

func (s *DocumentStore) find(ctx context.Context, collection string, filter bson.M) ([]model.GenericRecord, error) {
	cur, err := s.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return nil, eris.Wrapf(err, "document store: find %s", collection)
	}
	defer cur.Close(ctx)

	var out []model.GenericRecord
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, eris.Wrapf(err, "document store: decode %s", collection)
		}
		out = append(out, FromBSON(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, eris.Wrapf(err, "document store: cursor %s", collection)
	}
	s.logger.Debug("document store: fetched", zap.String("collection", collection), zap.Int("documents", len(out)))
	return out, nil
}

// FromBSON converts a decoded document into plain Go values the schema
// adapter understands: ObjectIDs become hex strings, BSON dates become
// time.Time and nested documents become maps.
func FromBSON(doc bson.M) model.GenericRecord {
	out := make(model.GenericRecord, len(doc))
	for k, v := range doc {
		out[k] = fromBSONValue(v)
	}
	return out
}

func fromBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC()
	case bson.M:
		return map[string]interface{}(FromBSON(val))
	case bson.D:
		m := make(map[string]interface{}, len(val))
		for _, e := range val {
			m[e.Key] = fromBSONValue(e.Value)
		}
		return m
	case bson.A:
		arr := make([]interface{}, 0, len(val))
		for _, item := range val {
			arr = append(arr, fromBSONValue(item))
		}
		return arr
	case int32:
		return int(val)
	default:
		return v
	}
}
