// Package meta carries per-request values (request id, session address) through a
// context so log lines written deep inside a handler can be correlated.
package meta

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

type metadata struct {
	carrier map[interface{}]interface{}
	mu      sync.RWMutex
}

func (c *metadata) value(key interface{}) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.carrier[key]
}

func (c *metadata) set(key, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carrier[key] = value
}

type contextKey struct{}

var metaContextKey = contextKey{}

// Begin attaches a metadata carrier to parent. Calling it again on a context that
// already carries one returns parent unchanged, so it is safe to call from nested
// middleware.
func Begin(parent context.Context) context.Context {
	if parent.Value(metaContextKey) != nil {
		return parent
	}
	return context.WithValue(parent, metaContextKey, &metadata{
		carrier: make(map[interface{}]interface{}),
	})
}

func metadataFrom(parent context.Context) *metadata {
	value := parent.Value(metaContextKey)
	if value == nil {
		logrus.Debug("meta not found from context, should call meta.Begin() first?")
		return nil
	}
	return value.(*metadata)
}

// WithValue stores key/val in the carrier attached to parent.
func WithValue(parent context.Context, key, val interface{}) {
	if m := metadataFrom(parent); m != nil {
		m.set(key, val)
	}
}

// Value reads key from the carrier attached to parent.
func Value(parent context.Context, key interface{}) interface{} {
	if m := metadataFrom(parent); m != nil {
		return m.value(key)
	}
	return nil
}

type requestIDKey struct{}

func SetRequestID(ctx context.Context, id string) {
	WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := Value(ctx, requestIDKey{}).(string)
	return id
}

type accountKey struct{}

// SetAccount records the wallet address a request acts for.
func SetAccount(ctx context.Context, address string) {
	WithValue(ctx, accountKey{}, address)
}

func Account(ctx context.Context) string {
	a, _ := Value(ctx, accountKey{}).(string)
	return a
}
