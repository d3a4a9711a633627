package identity

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_NotReady(t *testing.T) {
	p := New()
	_, err := p.SelfAccount()
	require.ErrorIs(t, err, ErrNotReady)
	assert.False(t, p.Ready())
}

func TestProvider_SetOnce(t *testing.T) {
	p := New()
	require.NoError(t, p.Set(10001))

	got, err := p.SelfAccount()
	require.NoError(t, err)
	assert.Equal(t, int64(10001), got)

	// same account is fine, a different one is not
	require.NoError(t, p.Set(10001))
	err = p.Set(20002)
	assert.True(t, errors.Is(err, ErrAlreadySet))

	got, _ = p.SelfAccount()
	assert.Equal(t, int64(10001), got)
}

func TestProvider_ConcurrentReads(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.SelfAccount()
		}()
	}
	require.NoError(t, p.Set(7))
	wg.Wait()
	assert.True(t, p.Ready())
}
