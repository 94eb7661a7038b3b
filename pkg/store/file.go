package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// File is a Store that keeps one JSON document per key in a directory.
// Documents are spread over subdirectories named after the first two hex
// characters of the key's hash, to avoid too many files in one directory.
//
// A File store is safe for concurrent use within one process. Several
// processes must not share a directory.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile returns a file store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

type fileSeq struct {
	Next int64 `json:"next"`
}

type fileCollection struct {
	Meta
	Namespace string  `json:"ns"`
	Images    []int64 `json:"images"`
}

type fileImage struct {
	Annotations []Annotation `json:"annotations"`
}

func collectionKey(id int64) string { return fmt.Sprintf("collection:%d", id) }
func imageKey(id int64) string      { return fmt.Sprintf("image:%d", id) }

// CreateCollection stores a collection annotation.
func (f *File) CreateCollection(ctx context.Context, meta Meta) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := f.nextID()
	if err != nil {
		return 0, err
	}
	doc := fileCollection{Meta: meta, Namespace: NamespaceCollection, Images: []int64{}}
	if err := f.write(collectionKey(id), doc); err != nil {
		return 0, err
	}
	return id, nil
}

// Collection returns a collection annotation.
func (f *File) Collection(ctx context.Context, id int64) (Meta, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var doc fileCollection
	ok, err := f.read(collectionKey(id), &doc)
	if err != nil || !ok {
		return Meta{}, false, err
	}
	return doc.Meta, true, nil
}

// DeleteCollection removes a collection annotation and its links.
func (f *File) DeleteCollection(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remove(collectionKey(id))
}

// LinkImage links a collection to an image.
func (f *File) LinkImage(ctx context.Context, collectionID, imageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var doc fileCollection
	ok, err := f.read(collectionKey(collectionID), &doc)
	if err != nil {
		return err
	}
	if !ok {
		return collectionNotFound(collectionID)
	}
	if slices.Contains(doc.Images, imageID) {
		return nil
	}
	doc.Images = append(doc.Images, imageID)
	return f.write(collectionKey(collectionID), doc)
}

// Images returns the images linked to a collection.
func (f *File) Images(ctx context.Context, collectionID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var doc fileCollection
	if _, err := f.read(collectionKey(collectionID), &doc); err != nil {
		return nil, err
	}
	return doc.Images, nil
}

// AddNodeAnnotation attaches a node annotation to an image.
func (f *File) AddNodeAnnotation(ctx context.Context, imageID int64, values []KeyValue) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := f.nextID()
	if err != nil {
		return 0, err
	}
	var doc fileImage
	if _, err := f.read(imageKey(imageID), &doc); err != nil {
		return 0, err
	}
	doc.Annotations = append(doc.Annotations, Annotation{ID: id, Namespace: NamespaceNodes, Values: values})
	if err := f.write(imageKey(imageID), doc); err != nil {
		return 0, err
	}
	return id, nil
}

// NodeAnnotations returns the node annotations of an image.
func (f *File) NodeAnnotations(ctx context.Context, imageID int64) ([]Annotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var doc fileImage
	if _, err := f.read(imageKey(imageID), &doc); err != nil {
		return nil, err
	}
	return doc.Annotations, nil
}

// DeleteNodeAnnotation removes a node annotation from an image.
func (f *File) DeleteNodeAnnotation(ctx context.Context, imageID, annotationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var doc fileImage
	ok, err := f.read(imageKey(imageID), &doc)
	if err != nil || !ok {
		return err
	}
	doc.Annotations = slices.DeleteFunc(doc.Annotations, func(a Annotation) bool {
		return a.ID == annotationID
	})
	if len(doc.Annotations) == 0 {
		return f.remove(imageKey(imageID))
	}
	return f.write(imageKey(imageID), doc)
}

// Close does nothing for the file store.
func (f *File) Close() error {
	return nil
}

// nextID allocates an annotation id. The caller holds f.mu.
func (f *File) nextID() (int64, error) {
	var seq fileSeq
	if _, err := f.read("seq", &seq); err != nil {
		return 0, err
	}
	seq.Next++
	if err := f.write("seq", seq); err != nil {
		return 0, err
	}
	return seq.Next, nil
}

func (f *File) read(key string, v any) (bool, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("corrupt document %s: %w", key, err)
	}
	return true, nil
}

// write replaces the document atomically.
func (f *File) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	path := f.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (f *File) remove(key string) error {
	err := os.Remove(f.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// path converts a key to a file path under hash[:2]/hash[2:].json.
func (f *File) path(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(f.dir, hash[:2], hash[2:]+".json")
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Ensure File implements Store.
var _ Store = (*File)(nil)
