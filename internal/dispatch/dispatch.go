package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/melih-ucgun/pldownloader/internal/core"
)

// Factory builds a backend. It is called at most once.
type Factory func() (core.Backend, error)

// Event describes one completed operation.
type Event struct {
	Op       string
	FileName string
	Location string
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Observer is notified after every operation, before its result is released.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

type Options struct {
	Family   core.Family
	Desktop  Factory
	Mobile   Factory
	Observer Observer
	Logger   *slog.Logger
}

// Dispatcher routes every operation to the single backend chosen at
// construction. It holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	backend  core.Backend
	observer Observer
	logger   *slog.Logger
}

func New(opts Options) (*Dispatcher, error) {
	var factory Factory
	switch opts.Family {
	case core.FamilyDesktop:
		factory = opts.Desktop
	case core.FamilyMobile:
		factory = opts.Mobile
	default:
		return nil, fmt.Errorf("unknown platform family %q", opts.Family)
	}
	if factory == nil {
		return nil, fmt.Errorf("no %s backend available", opts.Family)
	}

	backend, err := factory()
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", opts.Family, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Backend bound", "family", opts.Family, "backend", backend.Name())

	return &Dispatcher{backend: backend, observer: opts.Observer, logger: logger}, nil
}

// Backend returns the name of the bound backend.
func (d *Dispatcher) Backend() string {
	return d.backend.Name()
}

// Pending is the eventual result of one operation.
type Pending[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the operation has finished.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the operation finishes or ctx ends. Ending ctx does not
// stop the operation.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (d *Dispatcher) Ping(ctx context.Context, req core.PingRequest) *Pending[core.PingResponse] {
	return launch(d, ctx, core.OpPing, func(ctx context.Context) (core.PingResponse, error) {
		return d.backend.Ping(ctx, req)
	}, func(core.PingResponse) (string, string) { return "", "" })
}

func (d *Dispatcher) DownloadPrivate(ctx context.Context, req core.DownloadPrivateRequest) *Pending[core.DownloadResponse] {
	return launch(d, ctx, core.OpDownloadPrivate, func(ctx context.Context) (core.DownloadResponse, error) {
		return d.backend.DownloadPrivate(ctx, req)
	}, describe)
}

func (d *Dispatcher) DownloadPublic(ctx context.Context, req core.DownloadPublicRequest) *Pending[core.DownloadResponse] {
	return launch(d, ctx, core.OpDownloadPublic, func(ctx context.Context) (core.DownloadResponse, error) {
		return d.backend.DownloadPublic(ctx, req)
	}, describe)
}

func (d *Dispatcher) SaveFilePrivateFromBuffer(ctx context.Context, req core.SaveFilePrivateFromBufferRequest) *Pending[core.DownloadResponse] {
	return launch(d, ctx, core.OpSaveFilePrivateFromBuffer, func(ctx context.Context) (core.DownloadResponse, error) {
		return d.backend.SaveFilePrivateFromBuffer(ctx, req)
	}, describe)
}

func (d *Dispatcher) SaveFilePublicFromBuffer(ctx context.Context, req core.SaveFilePublicFromBufferRequest) *Pending[core.DownloadResponse] {
	return launch(d, ctx, core.OpSaveFilePublicFromBuffer, func(ctx context.Context) (core.DownloadResponse, error) {
		return d.backend.SaveFilePublicFromBuffer(ctx, req)
	}, describe)
}

func (d *Dispatcher) SaveFilePrivateFromPath(ctx context.Context, req core.SaveFilePrivateFromPathRequest) *Pending[core.DownloadResponse] {
	return launch(d, ctx, core.OpSaveFilePrivateFromPath, func(ctx context.Context) (core.DownloadResponse, error) {
		return d.backend.SaveFilePrivateFromPath(ctx, req)
	}, describe)
}

func (d *Dispatcher) SaveFilePublicFromPath(ctx context.Context, req core.SaveFilePublicFromPathRequest) *Pending[core.DownloadResponse] {
	return launch(d, ctx, core.OpSaveFilePublicFromPath, func(ctx context.Context) (core.DownloadResponse, error) {
		return d.backend.SaveFilePublicFromPath(ctx, req)
	}, describe)
}

func (d *Dispatcher) CopyFilePath(ctx context.Context, src, dest string) *Pending[string] {
	return launch(d, ctx, core.OpCopyFilePath, func(ctx context.Context) (string, error) {
		return d.backend.CopyFilePath(ctx, src, dest)
	}, func(dest string) (string, string) {
		if dest == "" {
			return "", ""
		}
		return filepath.Base(dest), dest
	})
}

func describe(resp core.DownloadResponse) (string, string) {
	return resp.FileName, resp.Location()
}

// launch runs fn on its own goroutine. The backend sees a context that is
// never cancelled, so callers can only stop waiting.
func launch[T any](d *Dispatcher, ctx context.Context, op string, fn func(context.Context) (T, error), what func(T) (string, string)) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{})}
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(p.done)
		start := time.Now()

		func() {
			defer func() {
				if r := recover(); r != nil {
					p.err = fmt.Errorf("%s: backend panicked: %v", op, r)
				}
			}()
			p.value, p.err = fn(ctx)
		}()

		ev := Event{Op: op, Err: p.err, Started: start, Duration: time.Since(start)}
		if p.err == nil {
			ev.FileName, ev.Location = what(p.value)
		}
		if p.err != nil {
			d.logger.Debug("Operation failed", "op", op, "backend", d.backend.Name(), "error", p.err)
		}
		if d.observer != nil {
			d.observer.Observe(ctx, ev)
		}
	}()
	return p
}

// Call is one unit of work for All.
type Call func(ctx context.Context) error

// All runs calls with at most limit in flight (no limit when limit <= 0).
// Every call runs regardless of failures; the first error is returned.
func All(ctx context.Context, limit int, calls ...Call) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, call := range calls {
		g.Go(func() error {
			return call(ctx)
		})
	}
	return g.Wait()
}
