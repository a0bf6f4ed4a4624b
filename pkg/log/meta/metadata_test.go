package meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeginIsIdempotent(t *testing.T) {
	ctx := Begin(context.Background())
	assert.Same(t, ctx, Begin(ctx))

	SetRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestValueWithoutBegin(t *testing.T) {
	ctx := context.Background()
	WithValue(ctx, "k", "v")
	assert.Nil(t, Value(ctx, "k"))
	assert.Empty(t, RequestID(ctx))
}

func TestAccount(t *testing.T) {
	ctx := Begin(context.Background())
	assert.Empty(t, Account(ctx))
	SetAccount(ctx, "0x00000000000000000000000000000000000000aa")
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", Account(ctx))
	assert.Empty(t, RequestID(ctx))
}
