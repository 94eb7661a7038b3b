package store

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Store. It is used by tests and by the serve
// command when no persistent backend is configured.
type Memory struct {
	mu          sync.Mutex
	next        int64
	collections map[int64]*memCollection
	annotations map[int64][]Annotation // by image id
}

type memCollection struct {
	meta   Meta
	images []int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[int64]*memCollection),
		annotations: make(map[int64][]Annotation),
	}
}

// CreateCollection stores a collection annotation.
func (m *Memory) CreateCollection(ctx context.Context, meta Meta) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.collections[m.next] = &memCollection{meta: meta}
	return m.next, nil
}

// Collection returns a collection annotation.
func (m *Memory) Collection(ctx context.Context, id int64) (Meta, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok {
		return Meta{}, false, nil
	}
	return c.meta, true, nil
}

// DeleteCollection removes a collection annotation and its links.
func (m *Memory) DeleteCollection(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, id)
	return nil
}

// LinkImage links a collection to an image.
func (m *Memory) LinkImage(ctx context.Context, collectionID, imageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collectionID]
	if !ok {
		return collectionNotFound(collectionID)
	}
	if !slices.Contains(c.images, imageID) {
		c.images = append(c.images, imageID)
	}
	return nil
}

// Images returns the images linked to a collection.
func (m *Memory) Images(ctx context.Context, collectionID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collectionID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(c.images), nil
}

// AddNodeAnnotation attaches a node annotation to an image.
func (m *Memory) AddNodeAnnotation(ctx context.Context, imageID int64, values []KeyValue) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.annotations[imageID] = append(m.annotations[imageID], Annotation{
		ID:        m.next,
		Namespace: NamespaceNodes,
		Values:    slices.Clone(values),
	})
	return m.next, nil
}

// NodeAnnotations returns the node annotations of an image.
func (m *Memory) NodeAnnotations(ctx context.Context, imageID int64) ([]Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	anns := m.annotations[imageID]
	out := make([]Annotation, len(anns))
	for i, a := range anns {
		a.Values = slices.Clone(a.Values)
		out[i] = a
	}
	return out, nil
}

// DeleteNodeAnnotation removes a node annotation from an image.
func (m *Memory) DeleteNodeAnnotation(ctx context.Context, imageID, annotationID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.annotations[imageID] = slices.DeleteFunc(m.annotations[imageID], func(a Annotation) bool {
		return a.ID == annotationID
	})
	return nil
}

// Close does nothing for the memory store.
func (m *Memory) Close() error {
	return nil
}

// Ensure Memory implements Store.
var _ Store = (*Memory)(nil)
