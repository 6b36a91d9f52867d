package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/melih-ucgun/pldownloader/internal/core"
)

var (
	ErrNoHandler    = errors.New("no handler registered")
	ErrHandlerPanic = errors.New("handler panicked")
	ErrClosed       = errors.New("bridge closed")
	ErrEmptyReply   = errors.New("handler replied with no payload")
)

// Caller sends one named request across the boundary and decodes the single
// reply into resp.
type Caller interface {
	Call(ctx context.Context, method string, req, resp any) error
}

// Handler is a native-side implementation of one remote call.
type Handler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Registry maps exact, case-sensitive call names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Handle(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

func (r *Registry) Lookup(method string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[method]
	return h, ok
}

// Methods lists the registered call names.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.handlers))
	for m := range r.handlers {
		methods = append(methods, m)
	}
	return methods
}

// Invoke runs the handler for method. A panicking handler is reported as an error.
func (r *Registry) Invoke(ctx context.Context, method string, payload json.RawMessage) (out json.RawMessage, err error) {
	h, ok := r.Lookup(method)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHandler, method)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %q: %v", ErrHandlerPanic, method, p)
		}
	}()
	return h(ctx, payload)
}

// emptyReply reports a reply that carries no value at all.
func emptyReply(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// HandleFunc registers a typed handler, taking care of the JSON payloads.
func HandleFunc[Req, Resp any](r *Registry, method string, fn func(context.Context, Req) (Resp, error)) {
	r.Handle(method, func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req Req
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, fmt.Errorf("decode %s request: %w", method, err)
			}
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
}

// RegisterBackend exposes the forwarded operations of b under their call names.
// It lets a desktop process stand in for native code.
func RegisterBackend(r *Registry, b core.Backend) {
	HandleFunc(r, core.OpPing, b.Ping)
	HandleFunc(r, core.OpDownloadPrivate, b.DownloadPrivate)
	HandleFunc(r, core.OpDownloadPublic, b.DownloadPublic)
}
