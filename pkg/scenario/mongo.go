package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
)

// MongoConfig configures a [MongoStore].
type MongoConfig struct {
	URI        string
	Database   string // default "wheelbench"
	Collection string // default "scenarios"
}

// MongoStore keeps scenarios in a MongoDB collection.
//
// The scenario itself is stored as its encoded JSON document: version keys
// such as "1.0" contain dots, which do not round-trip cleanly as BSON field
// names. Summary fields are kept alongside for querying.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoDocument struct {
	Name          string    `bson:"_id"`
	Requirements  []string  `bson:"requirements"`
	CreatedAt     time.Time `bson:"created_at"`
	Packages      int       `bson:"packages"`
	Distributions int       `bson:"distributions"`
	Document      string    `bson:"document"`
}

// NewMongoStore connects to MongoDB and pings the server.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo URI is required")
	}
	if cfg.Database == "" {
		cfg.Database = "wheelbench"
	}
	if cfg.Collection == "" {
		cfg.Collection = "scenarios"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// NextName implements Store.
func (m *MongoStore) NextName(ctx context.Context, requirements []string) (string, error) {
	return nextName(requirements, func(name string) (bool, error) {
		n, err := m.coll.CountDocuments(ctx, bson.M{"_id": name})
		return n > 0, err
	})
}

// Save implements Store, replacing any scenario stored under name.
func (m *MongoStore) Save(ctx context.Context, name string, s *Scenario) error {
	if err := wberrors.ValidateScenarioName(name); err != nil {
		return err
	}
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	doc := mongoDocument{
		Name:          name,
		Requirements:  s.Input.Requirements,
		CreatedAt:     s.Input.Timestamp.Time,
		Packages:      len(s.Packages),
		Distributions: s.DistributionCount(),
		Document:      string(data),
	}
	_, err = m.coll.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
	return err
}

// Load implements Store.
func (m *MongoStore) Load(ctx context.Context, name string) (*Scenario, error) {
	var doc mongoDocument
	err := m.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, wberrors.New(wberrors.ErrCodeNotFound, "scenario %q not found", name)
	}
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader([]byte(doc.Document)), name)
}

// List implements Store. Names are returned sorted.
func (m *MongoStore) List(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1})
	cur, err := m.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var names []string
	for cur.Next(ctx) {
		var doc struct {
			Name string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		names = append(names, doc.Name)
	}
	return names, cur.Err()
}

// Close disconnects from the server.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
