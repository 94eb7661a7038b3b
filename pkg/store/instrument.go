package store

import (
	"context"

	"github.com/matzehuels/omecollection/pkg/observability"
)

// instrumented wraps a Store and reports annotation traffic to the
// registered observability hooks.
type instrumented struct {
	Store
	backend string
}

// Instrument wraps s so that annotation reads and writes are reported to
// [observability.Store] under the given backend name.
func Instrument(s Store, backend string) Store {
	if _, ok := s.(*instrumented); ok {
		return s
	}
	return &instrumented{Store: s, backend: backend}
}

// CreateCollection reports a collection annotation write.
func (s *instrumented) CreateCollection(ctx context.Context, meta Meta) (int64, error) {
	id, err := s.Store.CreateCollection(ctx, meta)
	if err == nil {
		observability.Store().OnAnnotationWrite(ctx, s.backend, NamespaceCollection)
	}
	return id, err
}

// Collection reports a collection annotation read.
func (s *instrumented) Collection(ctx context.Context, id int64) (Meta, bool, error) {
	meta, ok, err := s.Store.Collection(ctx, id)
	if err == nil {
		n := 0
		if ok {
			n = 1
		}
		observability.Store().OnAnnotationRead(ctx, s.backend, NamespaceCollection, n)
	}
	return meta, ok, err
}

// AddNodeAnnotation reports a node annotation write.
func (s *instrumented) AddNodeAnnotation(ctx context.Context, imageID int64, values []KeyValue) (int64, error) {
	id, err := s.Store.AddNodeAnnotation(ctx, imageID, values)
	if err == nil {
		observability.Store().OnAnnotationWrite(ctx, s.backend, NamespaceNodes)
	}
	return id, err
}

// NodeAnnotations reports a node annotation read.
func (s *instrumented) NodeAnnotations(ctx context.Context, imageID int64) ([]Annotation, error) {
	anns, err := s.Store.NodeAnnotations(ctx, imageID)
	if err == nil {
		observability.Store().OnAnnotationRead(ctx, s.backend, NamespaceNodes, len(anns))
	}
	return anns, err
}

var _ Store = (*instrumented)(nil)
