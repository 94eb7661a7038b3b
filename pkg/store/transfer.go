package store

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/omecollection/pkg/collection"
	cerrors "github.com/matzehuels/omecollection/pkg/errors"
	"github.com/matzehuels/omecollection/pkg/observability"
)

// DefaultConcurrency bounds the per-image reads of [Transfer.Download].
const DefaultConcurrency = 8

// Transfer moves collections between trees and a [Store].
//
// A Transfer holds no per-call state; one value may serve concurrent
// uploads and downloads.
type Transfer struct {
	Store       Store
	Logger      *log.Logger
	Concurrency int
}

// NewTransfer returns a transfer over s. A nil logger uses log.Default()
// and a non-positive concurrency uses [DefaultConcurrency].
func NewTransfer(s Store, logger *log.Logger, concurrency int) *Transfer {
	if logger == nil {
		logger = log.Default()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Transfer{Store: s, Logger: logger, Concurrency: concurrency}
}

type encoded struct {
	path    string
	imageID int64
	values  []KeyValue
}

// Upload stores w and returns the new collection id.
//
// Every record is checked and encoded before the first write, so a record
// without a usable image id, or with a value the store cannot read back,
// fails the call without touching the store. Store errors
// after that point leave a partial upload behind; Delete removes it.
func (t *Transfer) Upload(ctx context.Context, w *collection.Wrapper) (id int64, err error) {
	if w == nil || w.OME == nil {
		return 0, cerrors.New(cerrors.ErrCodeInvalidInput, "no collection to upload")
	}
	c := w.OME
	records := c.Flatten()

	hooks := observability.Transfer()
	start := time.Now()
	hooks.OnUploadStart(ctx, c.Name, len(records))
	defer func() {
		hooks.OnUploadComplete(ctx, c.Name, id, len(records), time.Since(start), err)
	}()

	// Encode with a placeholder id; the tag is rewritten once the
	// collection exists.
	batch := make([]encoded, 0, len(records))
	for _, rec := range records {
		if err := CheckSeparators(rec); err != nil {
			return 0, err
		}
		imageID, values, err := EncodeRecord(rec, 0)
		if err != nil {
			return 0, err
		}
		batch = append(batch, encoded{path: rec.Path(), imageID: imageID, values: values})
	}

	id, err = t.Store.CreateCollection(ctx, Meta{Name: c.Name, Version: c.Version, Leaves: len(records)})
	if err != nil {
		return 0, cerrors.Wrap(cerrors.ErrCodeInternal, err, "create collection %q", c.Name)
	}
	tag := KeyValue{Key: KeyCollectionID, Value: itoa(id)}
	t.log().Debug("created collection", "id", id, "name", c.Name, "leaves", len(records))

	for _, e := range batch {
		e.values[1] = tag
		if err := t.Store.LinkImage(ctx, id, e.imageID); err != nil {
			return id, cerrors.Wrap(cerrors.ErrCodeInternal, err, "link image %d", e.imageID)
		}
		if _, err := t.Store.AddNodeAnnotation(ctx, e.imageID, e.values); err != nil {
			return id, cerrors.AtPath(
				cerrors.Wrap(cerrors.ErrCodeInternal, err, "annotate image %d", e.imageID), e.path)
		}
		t.log().Debug("annotated image", "image", e.imageID, "path", e.path)
	}

	t.log().Info("uploaded collection", "id", id, "name", c.Name, "leaves", len(records),
		"duration", time.Since(start))
	return id, nil
}

// Download rebuilds the collection stored under id.
//
// Each linked image contributes the first of its node annotations tagged
// with id. It fails with COLLECTION_NOT_FOUND if the collection annotation
// is missing and with NO_RECORDS if a non-empty collection yields no
// records. A collection stored with zero leaves comes back as an empty tree.
func (t *Transfer) Download(ctx context.Context, id int64) (w *collection.Wrapper, err error) {
	hooks := observability.Transfer()
	start := time.Now()
	records := 0
	hooks.OnDownloadStart(ctx, id)
	defer func() {
		hooks.OnDownloadComplete(ctx, id, records, time.Since(start), err)
	}()

	meta, ok, err := t.Store.Collection(ctx, id)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInternal, err, "read collection %d", id)
	}
	if !ok {
		return nil, collectionNotFound(id)
	}
	if meta.Leaves == 0 {
		return collection.Unflatten(nil, meta.Name, meta.Version)
	}

	images, err := t.Store.Images(ctx, id)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInternal, err, "list images of collection %d", id)
	}

	found := make([]collection.Record, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency())
	for i, imageID := range images {
		g.Go(func() error {
			anns, err := t.Store.NodeAnnotations(gctx, imageID)
			if err != nil {
				return cerrors.Wrap(cerrors.ErrCodeInternal, err, "read annotations of image %d", imageID)
			}
			for _, a := range anns {
				if rec, ok := DecodeRecord(a.Values, imageID, id); ok {
					found[i] = rec
					return nil
				}
			}
			t.log().Warn("image has no node annotation", "collection", id, "image", imageID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]collection.Record, 0, len(found))
	for _, rec := range found {
		if rec != nil {
			out = append(out, rec)
		}
	}
	records = len(out)
	if records == 0 {
		return nil, cerrors.New(cerrors.ErrCodeNoRecords, "collection %d has no node annotations", id)
	}
	if records != meta.Leaves {
		t.log().Warn("leaf count mismatch", "collection", id, "stored", meta.Leaves, "found", records)
	}

	w, err = collection.Unflatten(out, meta.Name, meta.Version)
	if err != nil {
		return nil, err
	}
	t.log().Info("downloaded collection", "id", id, "name", meta.Name, "leaves", records,
		"duration", time.Since(start))
	return w, nil
}

// Delete removes the collection stored under id together with its node
// annotations and returns the number of node annotations removed.
func (t *Transfer) Delete(ctx context.Context, id int64) (removed int, err error) {
	defer func() {
		observability.Transfer().OnDelete(ctx, id, removed, err)
	}()

	_, ok, err := t.Store.Collection(ctx, id)
	if err != nil {
		return 0, cerrors.Wrap(cerrors.ErrCodeInternal, err, "read collection %d", id)
	}
	if !ok {
		return 0, collectionNotFound(id)
	}
	images, err := t.Store.Images(ctx, id)
	if err != nil {
		return 0, cerrors.Wrap(cerrors.ErrCodeInternal, err, "list images of collection %d", id)
	}

	for _, imageID := range images {
		anns, err := t.Store.NodeAnnotations(ctx, imageID)
		if err != nil {
			return removed, cerrors.Wrap(cerrors.ErrCodeInternal, err, "read annotations of image %d", imageID)
		}
		for _, a := range anns {
			if a.Namespace != NamespaceNodes || !Tagged(a.Values, id) {
				continue
			}
			if err := t.Store.DeleteNodeAnnotation(ctx, imageID, a.ID); err != nil {
				return removed, cerrors.Wrap(cerrors.ErrCodeInternal, err, "delete annotation %d", a.ID)
			}
			removed++
		}
	}

	if err := t.Store.DeleteCollection(ctx, id); err != nil {
		return removed, cerrors.Wrap(cerrors.ErrCodeInternal, err, "delete collection %d", id)
	}
	t.log().Info("deleted collection", "id", id, "annotations", removed)
	return removed, nil
}

func (t *Transfer) log() *log.Logger {
	if t.Logger == nil {
		return log.Default()
	}
	return t.Logger
}

func (t *Transfer) concurrency() int {
	if t.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return t.Concurrency
}
