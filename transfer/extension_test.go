package transfer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/fake"
	"github.com/momentics/hioload-ring/transfer"
)

func TestExtensionCache_WriteKinds(t *testing.T) {
	bp := fake.NewBufferPool()
	c := transfer.NewExtensionCache(bp, 8)

	ro := c.WriteExtension(transfer.ExtensionBegin, true)
	assert.Zero(t, ro.Cap(), "read-only miss yields the empty buffer")
	assert.Zero(t, bp.Stats().TotalAlloc)

	b := c.WriteExtension(transfer.ExtensionBegin, false)
	_, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Same(t, b, c.WriteExtension(transfer.ExtensionBegin, true))
	assert.Equal(t, []byte("abc"), c.WriteExtension(transfer.ExtensionBegin, false).Bytes())

	d := c.WriteExtension(transfer.ExtensionData, false)
	assert.Same(t, b, d, "buffer is reused across kinds")
	assert.Zero(t, d.Len(), "switching kinds clears the buffer")
	assert.Equal(t, transfer.ExtensionData, d.Kind())
	assert.Equal(t, int64(1), bp.Stats().TotalAlloc)
}

func TestExtensionBuffer_Full(t *testing.T) {
	c := transfer.NewExtensionCache(fake.NewBufferPool(), 4)
	b := c.ReadExtension(transfer.ExtensionEnd)

	_, err := b.Write([]byte("abcd"))
	require.NoError(t, err)
	_, err = b.Write([]byte("e"))
	require.ErrorIs(t, err, api.ErrResourceExhausted)
	assert.Equal(t, []byte("abcd"), b.Bytes())

	b.Reset()
	assert.Zero(t, b.Len())
}

func TestExtensionCache_ReadKinds(t *testing.T) {
	c := transfer.NewExtensionCache(fake.NewBufferPool(), 16)
	r := c.ReadExtension(transfer.ExtensionBegin)
	_, _ = r.Write([]byte("x"))
	assert.Equal(t, 1, c.ReadExtension(transfer.ExtensionBegin).Len())
	assert.Zero(t, c.ReadExtension(transfer.ExtensionAbort).Len())
}

func TestExtensionCache_Release(t *testing.T) {
	bp := fake.NewBufferPool()
	c := transfer.NewExtensionCache(bp, 16)
	c.ReadExtension(transfer.ExtensionData)
	c.WriteExtension(transfer.ExtensionData, false)
	c.Release()

	stats := bp.Stats()
	assert.Equal(t, int64(2), stats.TotalFree)
	assert.Zero(t, stats.InUse)

	// usable again after release
	assert.Equal(t, 16, c.WriteExtension(transfer.ExtensionEnd, false).Cap())
}
