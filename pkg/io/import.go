package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/omecollection/pkg/collection"
	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

// ReadJSON decodes an {"ome": {...}} document from r.
//
// The document is first checked against the embedded JSON Schema, which
// rejects wrongly typed fields with a SCHEMA_VIOLATION whose rule is
// "document". Typed decoding then enforces every collection rule, so the
// returned tree is fully validated.
//
// ReadJSON does not close r.
func ReadJSON(r io.Reader) (*collection.Wrapper, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if err := checkShape(data, collectionSchema); err != nil {
		return nil, err
	}

	var w collection.Wrapper
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// ImportJSON reads the document at path. See [ReadJSON].
func ImportJSON(path string) (*collection.Wrapper, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// ReadRecords decodes a JSON array of flat records from r.
//
// Numbers are kept as json.Number so image ids are not rounded. Records
// are not validated beyond their shape; [collection.Unflatten] applies the
// path and attribute rules.
func ReadRecords(r io.Reader) ([]collection.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if err := checkShape(data, recordsSchema); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "decode")
	}
	records := make([]collection.Record, len(raw))
	for i, m := range raw {
		records[i] = collection.Record(m)
	}
	return records, nil
}

// ImportRecords reads the record list at path. See [ReadRecords].
func ImportRecords(path string) ([]collection.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadRecords(f)
}
