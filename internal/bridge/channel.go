package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

type result struct {
	payload json.RawMessage
	err     error
}

type envelope struct {
	ctx     context.Context
	method  string
	payload json.RawMessage
	reply   chan result
}

// Channel is an in-process bridge. Calls are serialized into envelopes and
// handed to a pump goroutine, which serves each one on its own goroutine.
type Channel struct {
	registry *Registry
	logger   *slog.Logger

	requests chan envelope
	done     chan struct{}
	pumpDone chan struct{}
	inflight sync.WaitGroup
	once     sync.Once
}

func NewChannel(registry *Registry, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Channel{
		registry: registry,
		logger:   logger,
		requests: make(chan envelope),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *Channel) pump() {
	defer close(c.pumpDone)
	for {
		select {
		case env := <-c.requests:
			c.inflight.Add(1)
			go c.serve(env)
		case <-c.done:
			return
		}
	}
}

func (c *Channel) serve(env envelope) {
	defer c.inflight.Done()
	payload, err := c.registry.Invoke(env.ctx, env.method, env.payload)
	if err != nil {
		c.logger.Debug("Bridge call rejected", "method", env.method, "error", err)
	}
	// reply is buffered, a caller that stopped waiting never blocks the handler.
	env.reply <- result{payload: payload, err: err}
}

// Call cancellation only stops the wait; a handler already running finishes.
func (c *Channel) Call(ctx context.Context, method string, req, resp any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	env := envelope{
		ctx:     context.WithoutCancel(ctx),
		method:  method,
		payload: payload,
		reply:   make(chan result, 1),
	}

	select {
	case c.requests <- env:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	var res result
	select {
	case res = <-env.reply:
	case <-ctx.Done():
		return ctx.Err()
	}

	if res.err != nil {
		return res.err
	}
	if emptyReply(res.payload) {
		return fmt.Errorf("decode %s response: %w", method, ErrEmptyReply)
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(res.payload, resp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// Close stops accepting calls and waits for in-flight handlers.
func (c *Channel) Close() error {
	c.once.Do(func() {
		close(c.done)
		<-c.pumpDone
		c.inflight.Wait()
	})
	return nil
}
