package store

import (
	"context"
	"fmt"

	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

// Annotation namespaces.
const (
	// NamespaceCollection tags the annotation holding a collection's name,
	// version and leaf count.
	NamespaceCollection = "ome/collection"
	// NamespaceNodes tags the per-image annotations holding one record each.
	NamespaceNodes = "ome/collection/nodes"
)

// Backend names accepted by [Open].
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Meta is the content of a collection annotation.
type Meta struct {
	Name    string `json:"name" bson:"name"`
	Version string `json:"version" bson:"version"`
	Leaves  int    `json:"leaves" bson:"leaves"`
}

// KeyValue is one entry of a key-value annotation. Keys may repeat.
type KeyValue struct {
	Key   string `json:"key" bson:"key"`
	Value string `json:"value" bson:"value"`
}

// Annotation is a node annotation attached to an image.
type Annotation struct {
	ID        int64      `json:"id" bson:"_id"`
	Namespace string     `json:"ns" bson:"ns"`
	Values    []KeyValue `json:"values" bson:"values"`
}

// Store is the annotation backend a collection is uploaded to.
//
// It mirrors the key-value annotations of an image server: a collection
// annotation is linked to every image of the collection, and each image
// carries node annotations, at most one of which belongs to a given
// collection. Implementations must be safe for concurrent use.
type Store interface {
	// CreateCollection stores a collection annotation and returns its id.
	CreateCollection(ctx context.Context, meta Meta) (int64, error)

	// Collection returns the collection annotation with id. The bool is
	// false if it does not exist.
	Collection(ctx context.Context, id int64) (Meta, bool, error)

	// DeleteCollection removes the collection annotation and its image
	// links. Node annotations are left alone.
	DeleteCollection(ctx context.Context, id int64) error

	// LinkImage links the collection annotation to an image. Linking the
	// same image twice is a no-op. It fails with COLLECTION_NOT_FOUND if
	// the collection does not exist.
	LinkImage(ctx context.Context, collectionID, imageID int64) error

	// Images returns the linked image ids in link order.
	Images(ctx context.Context, collectionID int64) ([]int64, error)

	// AddNodeAnnotation attaches a node annotation to an image and returns
	// its id.
	AddNodeAnnotation(ctx context.Context, imageID int64, values []KeyValue) (int64, error)

	// NodeAnnotations returns the node annotations of an image in creation
	// order.
	NodeAnnotations(ctx context.Context, imageID int64) ([]Annotation, error)

	// DeleteNodeAnnotation removes one node annotation from an image.
	DeleteNodeAnnotation(ctx context.Context, imageID, annotationID int64) error

	// Close releases resources held by the store.
	Close() error
}

// Options selects and configures a backend for [Open].
type Options struct {
	Backend  string // one of the Backend* constants
	DSN      string // directory (file), database path (sqlite), address or URL (redis), URI (mongo)
	Database string // mongo database, redis key prefix
}

// DefaultDatabase is used when Options.Database is empty.
const DefaultDatabase = "omecollection"

// Open connects to the backend named in opts. Every returned store reports
// its annotation traffic to the registered observability hooks.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}

	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case BackendMemory:
		s = NewMemory()
	case BackendFile:
		s, err = NewFile(opts.DSN)
	case BackendSQLite:
		s, err = NewSQLite(ctx, opts.DSN)
	case BackendRedis:
		s, err = NewRedis(ctx, opts.DSN, opts.Database)
	case BackendMongo:
		s, err = NewMongo(ctx, opts.DSN, opts.Database)
	default:
		return nil, cerrors.New(cerrors.ErrCodeUnsupported, "unknown store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", opts.Backend, err)
	}
	return Instrument(s, opts.Backend), nil
}

func collectionNotFound(id int64) error {
	return cerrors.New(cerrors.ErrCodeCollectionNotFound, "collection %d not found", id)
}
