// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about collection transfers, annotation store access and
// served HTTP requests.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so the store and server
// packages stay free of any metrics framework.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetTransferHooks(&myTransferHooks{})
//	    observability.SetStoreHooks(&myStoreHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Transfer().OnUploadStart(ctx, name, leaves)
//	// ... write annotations ...
//	observability.Transfer().OnUploadComplete(ctx, name, id, leaves, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Transfer Hooks
// =============================================================================

// TransferHooks receives events from collection upload, download and delete.
type TransferHooks interface {
	// Upload events
	OnUploadStart(ctx context.Context, name string, leaves int)
	OnUploadComplete(ctx context.Context, name string, collectionID int64, leaves int, duration time.Duration, err error)

	// Download events
	OnDownloadStart(ctx context.Context, collectionID int64)
	OnDownloadComplete(ctx context.Context, collectionID int64, records int, duration time.Duration, err error)

	// OnDelete records a collection removal and the number of node
	// annotations removed with it.
	OnDelete(ctx context.Context, collectionID int64, annotations int, err error)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from annotation store access.
type StoreHooks interface {
	// OnAnnotationWrite records a written annotation in namespace ns.
	OnAnnotationWrite(ctx context.Context, backend, ns string)

	// OnAnnotationRead records a read returning count annotations.
	OnAnnotationRead(ctx context.Context, backend, ns string, count int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP server.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records the response status and latency.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopTransferHooks is a no-op implementation of TransferHooks.
type NoopTransferHooks struct{}

func (NoopTransferHooks) OnUploadStart(context.Context, string, int) {}
func (NoopTransferHooks) OnUploadComplete(context.Context, string, int64, int, time.Duration, error) {
}
func (NoopTransferHooks) OnDownloadStart(context.Context, int64)                                {}
func (NoopTransferHooks) OnDownloadComplete(context.Context, int64, int, time.Duration, error) {}
func (NoopTransferHooks) OnDelete(context.Context, int64, int, error)                          {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnAnnotationWrite(context.Context, string, string)     {}
func (NoopStoreHooks) OnAnnotationRead(context.Context, string, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                       {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	transferHooks TransferHooks = NoopTransferHooks{}
	storeHooks    StoreHooks    = NoopStoreHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetTransferHooks registers custom transfer hooks.
// This should be called once at application startup before any transfers.
func SetTransferHooks(h TransferHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		transferHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
// This should be called once at application startup before any store access.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before serving.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Transfer returns the registered transfer hooks.
func Transfer() TransferHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return transferHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	transferHooks = NoopTransferHooks{}
	storeHooks = NoopStoreHooks{}
	httpHooks = NoopHTTPHooks{}
}
