package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisAddr is used when no address is configured.
const DefaultRedisAddr = "localhost:6379"

// Redis is a Store backed by a Redis server. All keys share a prefix so
// several stores can use one server.
//
// Layout, with P the prefix:
//
//	P:seq                        id counter
//	P:collection:<id>            hash of ns, name, version, leaves
//	P:collection:<id>:images     list of linked image ids, in link order
//	P:collection:<id>:imageset   set of linked image ids
//	P:annotation:<id>            JSON-encoded Annotation
//	P:image:<id>:annotations     list of annotation ids, in creation order
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to addr, which is either host:port or a redis:// URL,
// and verifies the connection.
func NewRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	var opts *redis.Options
	switch {
	case addr == "":
		opts = &redis.Options{Addr: DefaultRedisAddr}
	case strings.Contains(addr, "://"):
		var err error
		if opts, err = redis.ParseURL(addr); err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	default:
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := retryConnect(ctx, ping); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) key(parts ...string) string {
	return r.prefix + ":" + strings.Join(parts, ":")
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func (r *Redis) nextID(ctx context.Context) (int64, error) {
	return r.client.Incr(ctx, r.key("seq")).Result()
}

// CreateCollection stores a collection annotation.
func (r *Redis) CreateCollection(ctx context.Context, meta Meta) (int64, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate id: %w", err)
	}
	err = r.client.HSet(ctx, r.key("collection", itoa(id)),
		"ns", NamespaceCollection,
		"name", meta.Name,
		"version", meta.Version,
		"leaves", meta.Leaves,
	).Err()
	if err != nil {
		return 0, fmt.Errorf("write collection: %w", err)
	}
	return id, nil
}

// Collection returns a collection annotation.
func (r *Redis) Collection(ctx context.Context, id int64) (Meta, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.key("collection", itoa(id))).Result()
	if err != nil {
		return Meta{}, false, fmt.Errorf("read collection %d: %w", id, err)
	}
	if len(fields) == 0 {
		return Meta{}, false, nil
	}
	leaves, err := strconv.Atoi(fields["leaves"])
	if err != nil {
		return Meta{}, false, fmt.Errorf("collection %d: bad leaf count %q", id, fields["leaves"])
	}
	return Meta{Name: fields["name"], Version: fields["version"], Leaves: leaves}, true, nil
}

// DeleteCollection removes a collection annotation and its links.
func (r *Redis) DeleteCollection(ctx context.Context, id int64) error {
	base := r.key("collection", itoa(id))
	return r.client.Del(ctx, base, base+":images", base+":imageset").Err()
}

// LinkImage links a collection to an image.
func (r *Redis) LinkImage(ctx context.Context, collectionID, imageID int64) error {
	base := r.key("collection", itoa(collectionID))
	n, err := r.client.Exists(ctx, base).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return collectionNotFound(collectionID)
	}
	added, err := r.client.SAdd(ctx, base+":imageset", imageID).Result()
	if err != nil {
		return fmt.Errorf("link image %d: %w", imageID, err)
	}
	if added == 0 {
		return nil
	}
	return r.client.RPush(ctx, base+":images", imageID).Err()
}

// Images returns the images linked to a collection.
func (r *Redis) Images(ctx context.Context, collectionID int64) ([]int64, error) {
	raw, err := r.client.LRange(ctx, r.key("collection", itoa(collectionID), "images"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read links: %w", err)
	}
	return parseIDs(raw)
}

// AddNodeAnnotation attaches a node annotation to an image.
func (r *Redis) AddNodeAnnotation(ctx context.Context, imageID int64, values []KeyValue) (int64, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate id: %w", err)
	}
	data, err := json.Marshal(Annotation{ID: id, Namespace: NamespaceNodes, Values: values})
	if err != nil {
		return 0, err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key("annotation", itoa(id)), data, 0)
		pipe.RPush(ctx, r.key("image", itoa(imageID), "annotations"), id)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("write annotation: %w", err)
	}
	return id, nil
}

// NodeAnnotations returns the node annotations of an image.
func (r *Redis) NodeAnnotations(ctx context.Context, imageID int64) ([]Annotation, error) {
	raw, err := r.client.LRange(ctx, r.key("image", itoa(imageID), "annotations"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read annotation ids: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	keys := make([]string, len(raw))
	for i, id := range raw {
		keys[i] = r.key("annotation", id)
	}
	docs, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}

	anns := make([]Annotation, 0, len(docs))
	for i, doc := range docs {
		s, ok := doc.(string)
		if !ok {
			continue // deleted concurrently
		}
		var a Annotation
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("corrupt annotation %s: %w", raw[i], err)
		}
		anns = append(anns, a)
	}
	return anns, nil
}

// DeleteNodeAnnotation removes a node annotation from an image.
func (r *Redis) DeleteNodeAnnotation(ctx context.Context, imageID, annotationID int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, r.key("image", itoa(imageID), "annotations"), 0, annotationID)
		pipe.Del(ctx, r.key("annotation", itoa(annotationID)))
		return nil
	})
	return err
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Ensure Redis implements Store.
var _ Store = (*Redis)(nil)
