package store

import (
	"reflect"
	"testing"

	"github.com/matzehuels/omecollection/pkg/collection"
	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

func TestEncodeRecord(t *testing.T) {
	rec := collection.Record{
		"path":           "labels/seg",
		"omero:image_id": int64(2),
		"origin":         "masks",
		"category":       "annotations",
		"source":         []string{"raw", "smooth"},
		"label.colour":   "red",
		"scale":          2.5,
		"note":           nil,
		"collection_id":  "99",
	}

	imageID, values, err := EncodeRecord(rec, 7)
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}
	if imageID != 2 {
		t.Errorf("imageID = %d, want 2", imageID)
	}

	want := []KeyValue{
		{"path", "labels/seg"},
		{"collection_id", "7"},
		{"category", "annotations"},
		{"label.colour", "red"},
		{"origin", "masks"},
		{"scale", "2.5"},
		{"source", "raw,smooth"},
	}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("values = %v, want %v", values, want)
	}
}

func TestEncodeRecordErrors(t *testing.T) {
	tests := []struct {
		name string
		rec  collection.Record
		rule cerrors.Rule
	}{
		{"no path", collection.Record{"image_id": 1}, cerrors.RulePath},
		{"no id", collection.Record{"path": "a"}, cerrors.RuleIdentity},
		{"zero id", collection.Record{"path": "a", "image_id": 0}, cerrors.RuleIdentity},
		{"text id", collection.Record{"path": "a", "image_id": "one"}, cerrors.RuleIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := EncodeRecord(tt.rec, 1)
			if got := cerrors.GetRule(err); got != tt.rule {
				t.Errorf("rule = %q, want %q (err = %v)", got, tt.rule, err)
			}
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	values := []KeyValue{
		{"path", "a,b/c"},
		{"collection_id", "7"},
		{"image_id", "55"},
		{"source", "raw,smooth"},
		{"origin", "masks"},
		{"origin", "tracks"},
	}

	rec, ok := DecodeRecord(values, 3, 7)
	if !ok {
		t.Fatal("DecodeRecord() ok = false, want true")
	}
	want := collection.Record{
		"path":           "a,b/c",
		"source":         []string{"raw", "smooth"},
		"origin":         "tracks",
		"omero:image_id": int64(3),
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("record = %v, want %v", rec, want)
	}

	if _, ok := DecodeRecord(values, 3, 8); ok {
		t.Error("DecodeRecord() accepted an annotation of another collection")
	}
	if _, ok := DecodeRecord([]KeyValue{{"path", "a"}}, 3, 7); ok {
		t.Error("DecodeRecord() accepted an untagged annotation")
	}
}

func TestCodecCommaIsLossy(t *testing.T) {
	rec := collection.Record{"path": "a", "image_id": 1, "note": "one, two"}
	_, values, err := EncodeRecord(rec, 1)
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}
	back, _ := DecodeRecord(values, 1, 1)
	want := []string{"one", " two"}
	if !reflect.DeepEqual(back["note"], want) {
		t.Errorf("note = %#v, want %#v", back["note"], want)
	}
}

func TestTagged(t *testing.T) {
	tests := []struct {
		values []KeyValue
		id     int64
		want   bool
	}{
		{[]KeyValue{{"collection_id", "4"}}, 4, true},
		{[]KeyValue{{"collection_id", "4"}}, 5, false},
		{[]KeyValue{{"collection_id", "4"}, {"collection_id", "5"}}, 5, true},
		{nil, 4, false},
	}
	for _, tt := range tests {
		if got := Tagged(tt.values, tt.id); got != tt.want {
			t.Errorf("Tagged(%v, %d) = %v, want %v", tt.values, tt.id, got, tt.want)
		}
	}
}
