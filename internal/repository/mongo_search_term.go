package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/user/moviesearch/internal/model"
)

type searchTermDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Term      string             `bson:"term"`
	Count     int                `bson:"count"`
	PosterURL string             `bson:"poster_url"`
	UpdatedAt int64              `bson:"updatedAt"`
}

func (d searchTermDoc) toModel() model.SearchTerm {
	return model.SearchTerm{
		ID:        d.ID.Hex(),
		Term:      d.Term,
		Count:     d.Count,
		PosterURL: d.PosterURL,
		UpdatedAt: time.Unix(d.UpdatedAt, 0).UTC(),
	}
}

// MongoSearchTermRepository 基于 MongoDB 文档集合的热搜词存储
type MongoSearchTermRepository struct {
	collection *mongo.Collection
}

func NewMongoSearchTermRepository(client *mongo.Client, dbName, collectionName string) *MongoSearchTermRepository {
	return &MongoSearchTermRepository{collection: client.Database(dbName).Collection(collectionName)}
}

// ConnectMongo 连接 MongoDB
func ConnectMongo(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}

// EnsureIndexes term 唯一，count 倒序
func (r *MongoSearchTermRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "term", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "count", Value: -1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *MongoSearchTermRepository) FindByTerm(ctx context.Context, term string) (*model.SearchTerm, error) {
	var doc searchTermDoc
	if err := r.collection.FindOne(ctx, bson.M{"term": term}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	st := doc.toModel()
	return &st, nil
}

func (r *MongoSearchTermRepository) Create(ctx context.Context, st *model.SearchTerm) error {
	now := time.Now().UTC()
	doc := searchTermDoc{
		ID:        primitive.NewObjectID(),
		Term:      st.Term,
		Count:     st.Count,
		PosterURL: st.PosterURL,
		UpdatedAt: now.Unix(),
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateTerm
		}
		return err
	}
	st.ID = doc.ID.Hex()
	st.UpdatedAt = time.Unix(doc.UpdatedAt, 0).UTC()
	return nil
}

func (r *MongoSearchTermRepository) Update(ctx context.Context, id string, count int, posterURL string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"count":      count,
			"poster_url": posterURL,
			"updatedAt":  time.Now().UTC().Unix(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoSearchTermRepository) ListTop(ctx context.Context, limit int) ([]model.SearchTerm, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "count", Value: -1}, {Key: "updatedAt", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	terms := make([]model.SearchTerm, 0, limit)
	for cur.Next(ctx) {
		var doc searchTermDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		terms = append(terms, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return terms, nil
}

func (r *MongoSearchTermRepository) DeleteStale(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Unix()
	res, err := r.collection.DeleteMany(ctx, bson.M{"updatedAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
