package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
)

// Operation handles one named request. The payload is the raw JSON sent by
// the caller and may be empty.
type Operation func(ctx context.Context, payload json.RawMessage) (any, error)

// Registry routes named requests to their operations.
type Registry struct {
	mu     sync.RWMutex
	ops    map[string]Operation
	logger *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		ops:    make(map[string]Operation),
		logger: logger,
	}
}

// Register binds name to op. Registering the same name twice is a
// programming error and panics.
func (r *Registry) Register(name string, op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ops[name]; ok {
		panic(fmt.Sprintf("server: operation %q registered twice", name))
	}
	r.ops[name] = op
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named operation and wraps its outcome in an envelope.
// Dispatch never returns a nil Response.
func (r *Registry) Dispatch(ctx context.Context, name string, payload json.RawMessage) *Response {
	op, ok := r.Lookup(name)
	if !ok {
		return failure(apperr.NotFound("server.Dispatch", "unknown operation %q", name))
	}

	start := time.Now()
	data, err := op(ctx, payload)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindStorage, apperr.KindUnknown:
			r.logger.Error("operation failed",
				zap.String("operation", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
		default:
			r.logger.Debug("operation rejected",
				zap.String("operation", name),
				zap.String("kind", apperr.KindOf(err).String()),
				zap.Error(err))
		}
		return failure(err)
	}
	return success(data)
}

// decode unmarshals payload into v. An empty payload leaves v untouched.
func decode(op string, payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return apperr.E(apperr.KindValidation, op, "malformed payload", err)
	}
	return nil
}
