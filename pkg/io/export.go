package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/omecollection/pkg/collection"
)

// WriteJSON encodes w as an indented {"ome": {...}} document.
// The output can be re-imported with [ReadJSON].
func WriteJSON(w *collection.Wrapper, out io.Writer) error {
	return encode(w, out)
}

// ExportJSON writes w to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(w *collection.Wrapper, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(w, f)
}

// WriteRecords encodes records as an indented JSON array. A nil slice is
// written as [].
func WriteRecords(records []collection.Record, out io.Writer) error {
	if records == nil {
		records = []collection.Record{}
	}
	return encode(records, out)
}

// ExportRecords writes records to a JSON file at path.
func ExportRecords(records []collection.Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteRecords(records, f)
}

func encode(v any, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
