package pool_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/pool"
)

func TestArena_AcquireIsBlockAligned(t *testing.T) {
	arena, err := pool.NewHeapArena(4, 1024)
	require.NoError(t, err)
	defer arena.Close()

	seen := map[uint64]bool{}
	for i := 0; i < 4; i++ {
		addr := arena.Acquire(1024)
		require.NotEqual(t, api.NoAddress, addr)
		assert.Zero(t, addr%1024, "address %#x not block aligned", addr)
		assert.False(t, seen[addr], "address %#x handed out twice", addr)
		seen[addr] = true
		assert.Len(t, arena.Resolve(addr), 1024)
	}

	assert.Equal(t, api.NoAddress, arena.Acquire(1024), "arena should be exhausted")
	st := arena.Stats()
	assert.Equal(t, int64(4), st.InUse)
	assert.Equal(t, uint64(1), st.Failed)
}

func TestArena_RejectsOversizedRequest(t *testing.T) {
	arena, err := pool.NewHeapArena(2, 256)
	require.NoError(t, err)
	assert.Equal(t, api.NoAddress, arena.Acquire(512))
	assert.Equal(t, api.NoAddress, arena.Acquire(0))
}

func TestArena_ReleaseRecyclesAndIgnoresDoubleRelease(t *testing.T) {
	arena, err := pool.NewHeapArena(1, 64)
	require.NoError(t, err)

	addr := arena.Acquire(64)
	require.NotEqual(t, api.NoAddress, addr)
	arena.Release(addr, 64)
	arena.Release(addr, 64)
	arena.Release(addr+1, 64)
	assert.Nil(t, arena.Resolve(addr), "released block must not resolve")

	st := arena.Stats()
	assert.Equal(t, uint64(1), st.TotalReleased)
	assert.Equal(t, int64(0), st.InUse)

	again := arena.Acquire(64)
	assert.Equal(t, addr, again)
	assert.Equal(t, api.NoAddress, arena.Acquire(64), "double release must not duplicate the block")
}

func TestArena_ConcurrentAcquireRelease(t *testing.T) {
	arena, err := pool.NewHeapArena(8, 128)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				addr := arena.Acquire(128)
				if addr == api.NoAddress {
					continue
				}
				view := arena.Resolve(addr)
				view[0]++
				arena.Release(addr, 128)
			}
		}()
	}
	wg.Wait()

	st := arena.Stats()
	assert.Equal(t, int64(0), st.InUse)
	assert.Equal(t, st.TotalAcquired, st.TotalReleased)
}

func TestNewArena_Validation(t *testing.T) {
	_, err := pool.NewArena(pool.NewHeapBacking(100), 48)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = pool.NewArena(pool.NewHeapBacking(16), 32)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
