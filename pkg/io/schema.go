package io

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

//go:embed schema/collection.json
var collectionSchemaJSON string

//go:embed schema/records.json
var recordsSchemaJSON string

var (
	collectionSchema = lazySchema("collection.json", &collectionSchemaJSON)
	recordsSchema    = lazySchema("records.json", &recordsSchemaJSON)
)

// lazySchema compiles an embedded schema on first use.
func lazySchema(url string, src *string) func() (*jsonschema.Schema, error) {
	return sync.OnceValues(func() (*jsonschema.Schema, error) {
		return jsonschema.CompileString(url, *src)
	})
}

// checkShape decodes data and validates it against schema. It only checks
// the document shape; the collection rules are applied by typed decoding.
func checkShape(data []byte, schema func() (*jsonschema.Schema, error)) error {
	sch, err := schema()
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeInternal, err, "compile schema")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "decode")
	}

	if err := sch.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := deepestCause(ve)
			return &cerrors.Error{
				Code:    cerrors.ErrCodeSchemaViolation,
				Rule:    cerrors.RuleDocument,
				Field:   pointerField(leaf.InstanceLocation),
				Message: leaf.Message,
			}
		}
		return &cerrors.Error{
			Code:    cerrors.ErrCodeSchemaViolation,
			Rule:    cerrors.RuleDocument,
			Message: "document shape",
			Cause:   err,
		}
	}
	return nil
}

// deepestCause follows the first cause chain down to the most specific error.
func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// pointerField turns a JSON pointer such as /ome/nodes/0/name into
// ome.nodes[0].name.
func pointerField(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return "document"
	}
	var b strings.Builder
	for i, part := range strings.Split(ptr, "/") {
		if n, err := strconv.Atoi(part); err == nil && strconv.Itoa(n) == part {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
