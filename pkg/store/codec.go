package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/matzehuels/omecollection/pkg/collection"
	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

// KeyCollectionID tags every node annotation with the id of the collection
// it belongs to. It exists only at the storage boundary.
const KeyCollectionID = "collection_id"

// listSeparator joins list values. A scalar containing it is read back as a
// list; the encoding is lossy in that case, so uploads refuse such values.
const listSeparator = ","

// EncodeRecord converts a flat record into the values of a node annotation
// on its image.
//
// The image id is removed from the values and returned separately, since
// the annotation's image carries it. The path comes first, then the
// collection tag, then the remaining keys in sorted order. Lists are
// comma-joined, other values stringified, and null values dropped.
func EncodeRecord(rec collection.Record, collectionID int64) (int64, []KeyValue, error) {
	path := rec.Path()
	if path == "" {
		return 0, nil, cerrors.Violation(cerrors.RulePath, collection.KeyPath, "record has no path")
	}
	imageID, idKey, ok := rec.ImageID()
	if !ok || imageID <= 0 {
		return 0, nil, cerrors.AtPath(
			cerrors.Violation(cerrors.RuleIdentity, "image_id", "record has no positive integer image id"), path)
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		switch k {
		case collection.KeyPath, KeyCollectionID, idKey:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]KeyValue, 0, len(keys)+2)
	values = append(values,
		KeyValue{Key: collection.KeyPath, Value: path},
		KeyValue{Key: KeyCollectionID, Value: strconv.FormatInt(collectionID, 10)},
	)
	for _, k := range keys {
		v, ok := formatValue(rec[k])
		if !ok {
			continue
		}
		values = append(values, KeyValue{Key: k, Value: v})
	}
	return imageID, values, nil
}

// DecodeRecord rebuilds a flat record from the values of a node annotation
// on image imageID. It returns false if the annotation belongs to a
// different collection.
//
// The collection tag is stripped, every value except the path containing a
// comma is split into a list, and the image id is set under
// "omero:image_id". When a key repeats, the last value wins.
func DecodeRecord(values []KeyValue, imageID, collectionID int64) (collection.Record, bool) {
	if !Tagged(values, collectionID) {
		return nil, false
	}

	rec := make(collection.Record, len(values))
	for _, kv := range values {
		switch {
		case kv.Key == KeyCollectionID, collection.IsImageIDKey(kv.Key):
		case kv.Key == collection.KeyPath:
			rec[kv.Key] = kv.Value
		case strings.Contains(kv.Value, listSeparator):
			rec[kv.Key] = strings.Split(kv.Value, listSeparator)
		default:
			rec[kv.Key] = kv.Value
		}
	}
	rec[collection.IDStyleOMERO.ImageIDKey()] = imageID
	return rec, true
}

// CheckSeparators rejects record values that DecodeRecord would split
// differently than they were written: a scalar or list element containing
// the list separator. The path is exempt since it is never split.
func CheckSeparators(rec collection.Record) error {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		if k != collection.KeyPath {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := rec[k]
		var parts []any
		switch x := v.(type) {
		case []string:
			for _, e := range x {
				parts = append(parts, e)
			}
		case []any:
			parts = x
		default:
			parts = []any{v}
		}
		for _, p := range parts {
			if s, ok := formatValue(p); ok && strings.Contains(s, listSeparator) {
				return cerrors.AtPath(cerrors.Violation(cerrors.RuleDocument, k,
					"value %q contains %q, which the annotation store reads back as a list", s, listSeparator), rec.Path())
			}
		}
	}
	return nil
}

// Tagged reports whether the annotation values carry the collection tag
// for collectionID.
func Tagged(values []KeyValue, collectionID int64) bool {
	want := strconv.FormatInt(collectionID, 10)
	tag := ""
	for _, kv := range values {
		if kv.Key == KeyCollectionID {
			tag = kv.Value
		}
	}
	return tag == want
}

func formatValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case []string:
		return strings.Join(x, listSeparator), true
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := formatValue(e)
			if !ok {
				continue
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, listSeparator), true
	}
	return fmt.Sprint(v), true
}
