// Package mongostore persists platform data in MongoDB. It offers the same
// methods as the SQLite store so either can back the HTTP API.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/examgrader/internal/model"
)

const (
	colUsers    = "users"
	colSubjects = "subjects"
	colTests    = "tests"
	colResults  = "results"
	colRevoked  = "revoked_tokens"
	colMetadata = "exam_metadata"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri and prepares the indexes of database dbName.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		colSubjects: {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		colTests:    {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		colResults: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "student_id", Value: 1}}},
		},
		colRevoked: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		colMetadata: {{Keys: bson.D{{Key: "key", Value: 1}}, Options: unique}},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s: %w", col, err)
		}
	}
	return nil
}

// findOne decodes the first document matching filter into out. It returns
// false when nothing matched.
func (s *Store) findOne(ctx context.Context, col string, filter bson.M, out any) (bool, error) {
	err := s.db.Collection(col).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateUser inserts a new user. Email addresses are unique.
func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	if _, err := s.db.Collection(colUsers).InsertOne(ctx, u); err != nil {
		slog.Error("failed to create user", "email", u.Email, "error", err)
		return err
	}
	slog.Info("created user", "id", u.ID, "role", u.Role)
	return nil
}

// GetUserByEmail returns a user by email, or nil if none exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	ok, err := s.findOne(ctx, colUsers, bson.M{"email": email}, &u)
	if !ok || err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns a user by ID, or nil if none exists.
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	ok, err := s.findOne(ctx, colUsers, bson.M{"id": id}, &u)
	if !ok || err != nil {
		return nil, err
	}
	return &u, nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	n, err := s.db.Collection(colUsers).CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (s *Store) CreateSubject(ctx context.Context, sub model.Subject) error {
	_, err := s.db.Collection(colSubjects).InsertOne(ctx, sub)
	return err
}

// ListSubjects returns subjects, optionally filtered by class.
func (s *Store) ListSubjects(ctx context.Context, className string) ([]model.Subject, error) {
	filter := bson.M{}
	if className != "" {
		filter["class_name"] = className
	}
	var subjects []model.Subject
	err := s.findAll(ctx, colSubjects, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}), &subjects)
	return subjects, err
}

func (s *Store) CreateTest(ctx context.Context, t model.Test) error {
	_, err := s.db.Collection(colTests).InsertOne(ctx, t)
	if err != nil {
		slog.Error("failed to create test", "id", t.ID, "error", err)
	}
	return err
}

// GetTest returns a test by ID.
func (s *Store) GetTest(ctx context.Context, id string) (*model.Test, error) {
	var t model.Test
	ok, err := s.findOne(ctx, colTests, bson.M{"id": id}, &t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &model.NotFoundError{Kind: "test", ID: id}
	}
	return &t, nil
}

// ListTests returns tests matching the given filters.
// Empty strings mean no filtering on that field.
func (s *Store) ListTests(ctx context.Context, className string, testType model.TestType) ([]model.Test, error) {
	filter := bson.M{}
	if className != "" {
		filter["class_name"] = className
	}
	if testType != "" {
		filter["test_type"] = testType
	}
	var tests []model.Test
	err := s.findAll(ctx, colTests, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}), &tests)
	return tests, err
}

// resultDoc carries an ObjectID so results sort in insertion order.
type resultDoc struct {
	OID          primitive.ObjectID `bson:"_id"`
	model.Result `bson:",inline"`
}

// SaveResult inserts a new result. Results are never updated.
func (s *Store) SaveResult(ctx context.Context, r model.Result) (string, error) {
	_, err := s.db.Collection(colResults).InsertOne(ctx, resultDoc{OID: primitive.NewObjectID(), Result: r})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// GetResult returns a result by ID.
func (s *Store) GetResult(ctx context.Context, id string) (*model.Result, error) {
	var doc resultDoc
	ok, err := s.findOne(ctx, colResults, bson.M{"id": id}, &doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &model.NotFoundError{Kind: "result", ID: id}
	}
	return &doc.Result, nil
}

// ListResultsByStudent returns a student's results in insertion order.
func (s *Store) ListResultsByStudent(ctx context.Context, studentID string) ([]model.Result, error) {
	return s.listResults(ctx, bson.M{"student_id": studentID})
}

// ListResults returns all results in insertion order.
func (s *Store) ListResults(ctx context.Context) ([]model.Result, error) {
	return s.listResults(ctx, bson.M{})
}

func (s *Store) listResults(ctx context.Context, filter bson.M) ([]model.Result, error) {
	var docs []resultDoc
	if err := s.findAll(ctx, colResults, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}), &docs); err != nil {
		return nil, err
	}
	results := make([]model.Result, 0, len(docs))
	for _, d := range docs {
		results = append(results, d.Result)
	}
	return results, nil
}

func (s *Store) findAll(ctx context.Context, col string, filter bson.M, opts *options.FindOptions, out any) error {
	cur, err := s.db.Collection(col).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

type revokedToken struct {
	ID        string    `bson:"id"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// RevokeToken records a bearer token id as logged out until it expires.
// MongoDB's TTL monitor removes the record after expiry.
func (s *Store) RevokeToken(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.db.Collection(colRevoked).UpdateOne(ctx,
		bson.M{"id": id},
		bson.M{"$setOnInsert": revokedToken{ID: id, ExpiresAt: expiresAt}},
		options.Update().SetUpsert(true),
	)
	return err
}

// IsTokenRevoked reports whether the token id was revoked.
func (s *Store) IsTokenRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.db.Collection(colRevoked).CountDocuments(ctx, bson.M{"id": id})
	return n > 0, err
}

// CleanupRevokedTokens drops expired revocations without waiting for the TTL monitor.
func (s *Store) CleanupRevokedTokens(ctx context.Context) error {
	_, err := s.db.Collection(colRevoked).DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now()}})
	return err
}

type metadataDoc struct {
	Key   string `bson:"key"`
	Value string `bson:"value"`
}

// SetMetadata upserts a key-value pair.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.Collection(colMetadata).UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": metadataDoc{Key: key, Value: value}},
		options.Update().SetUpsert(true),
	)
	return err
}

// GetMetadata returns the value for a metadata key, or "" if it is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var doc metadataDoc
	if _, err := s.findOne(ctx, colMetadata, bson.M{"key": key}, &doc); err != nil {
		return "", err
	}
	return doc.Value, nil
}

func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	return s.GetMetadata(ctx, "import_hash:"+path)
}

func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	return s.SetMetadata(ctx, "import_hash:"+path, hash)
}
