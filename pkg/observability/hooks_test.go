package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Transfer hooks
	tr := NoopTransferHooks{}
	tr.OnUploadStart(ctx, "cells", 2)
	tr.OnUploadComplete(ctx, "cells", 1, 2, time.Second, nil)
	tr.OnDownloadStart(ctx, 1)
	tr.OnDownloadComplete(ctx, 1, 2, time.Second, nil)
	tr.OnDelete(ctx, 1, 2, errors.New("boom"))

	// Store hooks
	s := NoopStoreHooks{}
	s.OnAnnotationWrite(ctx, "memory", "ome/collection")
	s.OnAnnotationRead(ctx, "memory", "ome/collection/nodes", 3)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "/collections/1")
	h.OnResponse(ctx, "GET", "/collections/1", 200, time.Second)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Transfer().(NoopTransferHooks); !ok {
		t.Error("Transfer() should return NoopTransferHooks by default")
	}
	if _, ok := Store().(NoopStoreHooks); !ok {
		t.Error("Store() should return NoopStoreHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customTransfer := &testTransferHooks{}
	SetTransferHooks(customTransfer)
	if Transfer() != customTransfer {
		t.Error("SetTransferHooks should set custom hooks")
	}

	customStore := &testStoreHooks{}
	SetStoreHooks(customStore)
	if Store() != customStore {
		t.Error("SetStoreHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Transfer().(NoopTransferHooks); !ok {
		t.Error("Reset() should restore NoopTransferHooks")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("Reset() should restore NoopHTTPHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testTransferHooks{}
	SetTransferHooks(custom)

	// Setting nil should be ignored
	SetTransferHooks(nil)
	SetStoreHooks(nil)

	if Transfer() != custom {
		t.Error("SetTransferHooks(nil) should be ignored")
	}
	if _, ok := Store().(NoopStoreHooks); !ok {
		t.Error("SetStoreHooks(nil) should keep the default")
	}

	Reset()
}

// Test implementations
type testTransferHooks struct{ NoopTransferHooks }
type testStoreHooks struct{ NoopStoreHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
