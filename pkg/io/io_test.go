package io

import (
	"bytes"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/omecollection/pkg/collection"
	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

const doc = `{"ome": {
	"version": "0.1",
	"name": "cells",
	"nodes": [
		{"type": "multiscale", "name": "raw", "attributes": {"omero:image_id": 1, "category": "intensities", "origin": "raw"}},
		{"type": "collection", "name": "labels", "nodes": [
			{"type": "multiscale", "name": "seg", "attributes": {"omero:image_id": 2, "category": "annotations", "origin": "masks", "label": {"source": ["raw"]}}}
		]}
	]
}}`

func TestReadJSON(t *testing.T) {
	w, err := ReadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if w.OME.Name != "cells" || w.OME.Version != "0.1" {
		t.Errorf("root = %q/%q", w.OME.Name, w.OME.Version)
	}
	if got := len(collection.Flatten(w)); got != 2 {
		t.Errorf("leaf count = %d, want 2", got)
	}
}

func TestReadJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		code cerrors.Code
		rule cerrors.Rule
	}{
		{"malformed", `{"ome": `, cerrors.ErrCodeInvalidInput, ""},
		{"missing ome", `{"collection": {}}`, cerrors.ErrCodeSchemaViolation, cerrors.RuleDocument},
		{"name not a string", `{"ome": {"name": 3, "nodes": []}}`, cerrors.ErrCodeSchemaViolation, cerrors.RuleDocument},
		{"nodes not an array", `{"ome": {"name": "x", "nodes": {}}}`, cerrors.ErrCodeSchemaViolation, cerrors.RuleDocument},
		{"attributes not an object", `{"ome": {"name": "x", "nodes": [
			{"type": "multiscale", "name": "a", "attributes": [1]}
		]}}`, cerrors.ErrCodeSchemaViolation, cerrors.RuleDocument},
		{"both nodes and path", `{"ome": {"name": "x", "nodes": [
			{"type": "collection", "name": "a", "nodes": [], "path": "b"}
		]}}`, cerrors.ErrCodeSchemaViolation, cerrors.RuleNodesPath},
		{"unknown node type", `{"ome": {"name": "x", "nodes": [{"type": "image", "name": "a"}]}}`,
			cerrors.ErrCodeSchemaViolation, cerrors.RuleDiscriminator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tt.in))
			if err == nil {
				t.Fatal("ReadJSON() succeeded, want error")
			}
			if got := cerrors.GetCode(err); got != tt.code {
				t.Errorf("code = %v, want %v (%v)", got, tt.code, err)
			}
			if got := cerrors.GetRule(err); got != tt.rule {
				t.Errorf("rule = %v, want %v (%v)", got, tt.rule, err)
			}
		})
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	w, err := ReadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteJSON(w, &buf); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	first := buf.String()

	back, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON(WriteJSON()) error = %v", err)
	}
	var again bytes.Buffer
	if err := WriteJSON(back, &again); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if again.String() != first {
		t.Errorf("export is not stable:\n%s\n%s", first, again.String())
	}
}

func TestExportImportFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := ReadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}

	docPath := filepath.Join(dir, "collection.json")
	if err := ExportJSON(w, docPath); err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}
	back, err := ImportJSON(docPath)
	if err != nil {
		t.Fatalf("ImportJSON() error = %v", err)
	}
	if !reflect.DeepEqual(collection.Flatten(back), collection.Flatten(w)) {
		t.Error("ImportJSON(ExportJSON()) changed the records")
	}

	recPath := filepath.Join(dir, "records.json")
	if err := ExportRecords(collection.Flatten(w), recPath); err != nil {
		t.Fatalf("ExportRecords() error = %v", err)
	}
	records, err := ImportRecords(recPath)
	if err != nil {
		t.Fatalf("ImportRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("ImportRecords() returned %d records, want 2", len(records))
	}

	if _, err := ImportJSON(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("ImportJSON(missing) succeeded")
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	w, err := ReadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	records := collection.Flatten(w)

	var buf bytes.Buffer
	if err := WriteRecords(records, &buf); err != nil {
		t.Fatalf("WriteRecords() error = %v", err)
	}
	read, err := ReadRecords(&buf)
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}

	rebuilt, err := collection.Unflatten(read, "cells", "0.1")
	if err != nil {
		t.Fatalf("Unflatten() error = %v", err)
	}
	if got := collection.Flatten(rebuilt); !reflect.DeepEqual(got, records) {
		t.Errorf("records changed:\n got  %v\n want %v", got, records)
	}
}

func TestReadRecordsErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not an array", `{"path": "a"}`},
		{"nested object", `[{"path": "a", "label": {"source": "raw"}}]`},
		{"path not a string", `[{"path": 1}]`},
		{"list of numbers", `[{"path": "a", "source": [1, 2]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRecords(strings.NewReader(tt.in))
			if cerrors.GetRule(err) != cerrors.RuleDocument {
				t.Errorf("ReadRecords() error = %v, want document violation", err)
			}
		})
	}
}

func TestWriteRecordsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecords(nil, &buf); err != nil {
		t.Fatalf("WriteRecords() error = %v", err)
	}
	if got := buf.String(); got != "[]\n" {
		t.Errorf("WriteRecords(nil) = %q, want %q", got, "[]\n")
	}
}

func TestPointerField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "document"},
		{"/ome", "ome"},
		{"/ome/nodes/0/name", "ome.nodes[0].name"},
		{"/0/path", "[0].path"},
		{"/ome/nodes/1/nodes/12", "ome.nodes[1].nodes[12]"},
	}
	for _, tt := range tests {
		if got := pointerField(tt.in); got != tt.want {
			t.Errorf("pointerField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
