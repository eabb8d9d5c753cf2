package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanPool_DoubleReleaseDoesNotGrowPool(t *testing.T) {
	p := NewChanPool(1)
	ctx := context.Background()

	release, ok := p.Acquire(ctx)
	require.True(t, ok)
	release()
	release()

	r1, ok := p.Acquire(ctx)
	require.True(t, ok)
	defer r1()

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, ok = p.Acquire(short)
	assert.False(t, ok, "só existe uma vaga")
}

func TestChanPool_CanceledContextNeverAcquires(t *testing.T) {
	p := NewChanPool(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := p.Acquire(ctx)
	assert.False(t, ok)
}
