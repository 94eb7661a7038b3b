package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoURI is used when no URI is configured.
const DefaultMongoURI = "mongodb://localhost:27017"

// Mongo collection names.
const (
	mongoCounters    = "counters"
	mongoCollections = "collections"
	mongoAnnotations = "annotations"
)

// Mongo is a Store backed by a MongoDB database.
type Mongo struct {
	client      *mongo.Client
	counters    *mongo.Collection
	collections *mongo.Collection
	annotations *mongo.Collection
}

type mongoCollection struct {
	ID        int64  `bson:"_id"`
	Namespace string `bson:"ns"`
	Meta      `bson:",inline"`
	Images    []int64 `bson:"images"`
}

type mongoAnnotation struct {
	Annotation `bson:",inline"`
	ImageID    int64 `bson:"image_id"`
}

// NewMongo connects to uri, verifies the connection and ensures the
// annotation index in database.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		uri = DefaultMongoURI
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	ping := func(ctx context.Context) error { return client.Ping(ctx, nil) }
	if err := retryConnect(ctx, ping); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:      client,
		counters:    db.Collection(mongoCounters),
		collections: db.Collection(mongoCollections),
		annotations: db.Collection(mongoAnnotations),
	}
	_, err = m.annotations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "image_id", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("create index: %w", err)
	}
	return m, nil
}

func (m *Mongo) nextID(ctx context.Context) (int64, error) {
	var doc struct {
		N int64 `bson:"n"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "seq"},
		bson.M{"$inc": bson.M{"n": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("allocate id: %w", err)
	}
	return doc.N, nil
}

// CreateCollection stores a collection annotation.
func (m *Mongo) CreateCollection(ctx context.Context, meta Meta) (int64, error) {
	id, err := m.nextID(ctx)
	if err != nil {
		return 0, err
	}
	doc := mongoCollection{ID: id, Namespace: NamespaceCollection, Meta: meta, Images: []int64{}}
	if _, err := m.collections.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("insert collection: %w", err)
	}
	return id, nil
}

// Collection returns a collection annotation.
func (m *Mongo) Collection(ctx context.Context, id int64) (Meta, bool, error) {
	var doc mongoCollection
	err := m.collections.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, fmt.Errorf("find collection %d: %w", id, err)
	}
	return doc.Meta, true, nil
}

// DeleteCollection removes a collection annotation and its links.
func (m *Mongo) DeleteCollection(ctx context.Context, id int64) error {
	_, err := m.collections.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// LinkImage links a collection to an image.
func (m *Mongo) LinkImage(ctx context.Context, collectionID, imageID int64) error {
	res, err := m.collections.UpdateOne(ctx,
		bson.M{"_id": collectionID},
		bson.M{"$addToSet": bson.M{"images": imageID}},
	)
	if err != nil {
		return fmt.Errorf("link image %d: %w", imageID, err)
	}
	if res.MatchedCount == 0 {
		return collectionNotFound(collectionID)
	}
	return nil
}

// Images returns the images linked to a collection.
func (m *Mongo) Images(ctx context.Context, collectionID int64) ([]int64, error) {
	var doc mongoCollection
	err := m.collections.FindOne(ctx, bson.M{"_id": collectionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Images, nil
}

// AddNodeAnnotation attaches a node annotation to an image.
func (m *Mongo) AddNodeAnnotation(ctx context.Context, imageID int64, values []KeyValue) (int64, error) {
	id, err := m.nextID(ctx)
	if err != nil {
		return 0, err
	}
	doc := mongoAnnotation{
		Annotation: Annotation{ID: id, Namespace: NamespaceNodes, Values: values},
		ImageID:    imageID,
	}
	if _, err := m.annotations.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("insert annotation: %w", err)
	}
	return id, nil
}

// NodeAnnotations returns the node annotations of an image.
func (m *Mongo) NodeAnnotations(ctx context.Context, imageID int64) ([]Annotation, error) {
	cur, err := m.annotations.Find(ctx,
		bson.M{"image_id": imageID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find annotations: %w", err)
	}
	var docs []mongoAnnotation
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	anns := make([]Annotation, len(docs))
	for i, d := range docs {
		anns[i] = d.Annotation
	}
	return anns, nil
}

// DeleteNodeAnnotation removes a node annotation from an image.
func (m *Mongo) DeleteNodeAnnotation(ctx context.Context, imageID, annotationID int64) error {
	_, err := m.annotations.DeleteOne(ctx, bson.M{"_id": annotationID, "image_id": imageID})
	return err
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

// Ensure Mongo implements Store.
var _ Store = (*Mongo)(nil)
