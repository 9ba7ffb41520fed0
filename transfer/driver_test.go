package transfer_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/control"
	"github.com/momentics/hioload-ring/fake"
	"github.com/momentics/hioload-ring/transfer"
)

const waitFor = 2 * time.Second

func newDriver(t *testing.T, capacity uint64, sink api.RegionSink, opts ...transfer.DriverOption) (*transfer.Driver, *fake.LeaseManager) {
	t.Helper()
	w, lm := newWriter(t, capacity)
	d, err := transfer.NewDriver(w, sink, opts...)
	require.NoError(t, err)
	return d, lm
}

func TestDriver_StreamsThroughSmallRing(t *testing.T) {
	lm := fake.NewLeaseManager(64)
	consumer := fake.NewConsumer(lm, fake.Shuffled(7))
	cfg := transfer.DefaultConfig()
	cfg.Capacity = 64
	w, err := transfer.NewWriter(lm, cfg)
	require.NoError(t, err)
	d, err := transfer.NewDriver(w, consumer)
	require.NoError(t, err)
	d.Start()

	sent := map[uint64][]byte{1: payload(150, 1), 2: payload(97, 50), 3: payload(64, 9)}
	done := make(chan error, len(sent))
	for _, id := range []uint64{1, 2, 3} {
		require.NoError(t, d.Write(sent[id], id, func(err error) { done <- err }))
	}

	deadline := time.After(waitFor)
	for completed := 0; completed < len(sent); {
		select {
		case err := <-done:
			require.NoError(t, err)
			completed++
		case <-deadline:
			t.Fatal("writes did not complete")
		default:
			if acks := consumer.Acks(); len(acks) > 0 {
				require.NoError(t, d.Acknowledge(acks))
			} else {
				time.Sleep(time.Millisecond)
			}
		}
	}
	for id, want := range sent {
		assert.Equal(t, want, consumer.Stream(id), "stream %d", id)
	}

	require.NoError(t, d.Acknowledge(consumer.Acks()))
	require.NoError(t, d.CloseWrite())
	require.Eventually(t, func() bool {
		return d.Termination() == transfer.WriteClosed
	}, waitFor, time.Millisecond)
	assert.Zero(t, lm.Live())

	require.NoError(t, d.Stop())
	idx := d.Indices()
	assert.Equal(t, uint64(311), idx.TransferIndex)
	assert.Equal(t, idx.TransferIndex, idx.AckIndex)
}

func TestDriver_AckFaultFailsChannel(t *testing.T) {
	sink := fake.NewSink()
	faults := make(chan error, 1)
	d, lm := newDriver(t, 16, sink, transfer.WithFaultHandler(func(err error) { faults <- err }))
	d.Start()
	defer d.Stop()

	first := make(chan error, 1)
	queued := make(chan error, 1)
	require.NoError(t, d.Write(payload(16, 0), 1, func(err error) { first <- err }))
	require.NoError(t, d.Write(payload(4, 0), 1, func(err error) { queued <- err }))
	require.NoError(t, <-first)

	require.NoError(t, d.Acknowledge([]api.Region{{Address: fake.Base + 64, Length: 1}}))
	select {
	case err := <-faults:
		assert.ErrorIs(t, err, api.ErrAckOutOfRange)
	case <-time.After(waitFor):
		t.Fatal("fault handler not called")
	}
	assert.ErrorIs(t, <-queued, api.ErrAckOutOfRange)
	assert.ErrorIs(t, d.Err(), api.ErrAckOutOfRange)
	assert.Equal(t, transfer.WriteAborted, d.Termination())
	assert.Zero(t, lm.Live())

	late := make(chan error, 1)
	require.NoError(t, d.Write(payload(1, 0), 1, func(err error) { late <- err }))
	assert.ErrorIs(t, <-late, api.ErrAckOutOfRange)
}

func TestDriver_SinkErrorAndStopAggregation(t *testing.T) {
	sink := fake.NewSink()
	sendErr := errors.New("link down")
	closeErr := errors.New("close failed")
	sink.SetSendError(sendErr)
	sink.SetCloseError(closeErr)

	d, _ := newDriver(t, 16, sink)
	d.Start()

	done := make(chan error, 1)
	require.NoError(t, d.Write(payload(4, 0), 1, func(err error) { done <- err }))
	assert.ErrorIs(t, <-done, sendErr)

	err := d.Stop()
	assert.ErrorIs(t, err, sendErr)
	assert.ErrorIs(t, err, closeErr)
	assert.Equal(t, err, d.Stop(), "stop is idempotent")
}

func TestDriver_WritesAfterClose(t *testing.T) {
	sink := fake.NewSink()
	d, _ := newDriver(t, 16, sink)
	d.Start()

	require.NoError(t, d.CloseWrite())
	done := make(chan error, 1)
	require.NoError(t, d.Write(payload(1, 0), 1, func(err error) { done <- err }))
	assert.ErrorIs(t, <-done, api.ErrTransportClosed)

	require.NoError(t, d.Stop())
	assert.ErrorIs(t, d.Write(payload(1, 0), 1, nil), api.ErrTransportClosed)
	assert.ErrorIs(t, d.Acknowledge(nil), api.ErrTransportClosed)
	assert.ErrorIs(t, d.Do(func(*transfer.Writer, *transfer.ExtensionCache) {}), api.ErrTransportClosed)
}

func TestDriver_CloseWaitsForQueuedWrites(t *testing.T) {
	sink := fake.NewSink()
	d, lm := newDriver(t, 16, sink)
	d.Start()
	defer d.Stop()

	done := make(chan error, 1)
	require.NoError(t, d.Write(payload(24, 0), 1, func(err error) { done <- err }))
	require.NoError(t, d.CloseWrite())

	<-sink.Notify()
	require.Never(t, func() bool { return d.Termination() != transfer.NotTerminated },
		20*time.Millisecond, time.Millisecond)

	require.NoError(t, d.Acknowledge(sink.Take()))
	require.NoError(t, <-done)
	require.Eventually(t, func() bool {
		return d.Termination() == transfer.WriteClosed
	}, waitFor, time.Millisecond)
	assert.Zero(t, lm.Live())
}

func TestDriver_InboxFullAndStopDrains(t *testing.T) {
	d, _ := newDriver(t, 16, fake.NewSink(), transfer.WithInboxSize(1))

	done := make(chan error, 1)
	require.NoError(t, d.Write(payload(1, 0), 1, func(err error) { done <- err }))
	assert.ErrorIs(t, d.Write(payload(1, 0), 1, nil), api.ErrResourceExhausted)

	require.NoError(t, d.Stop())
	assert.ErrorIs(t, <-done, api.ErrTransportClosed)
	assert.Equal(t, transfer.ChannelClosed, d.Termination())
}

func TestDriver_DoAndProbes(t *testing.T) {
	bp := fake.NewBufferPool()
	d, _ := newDriver(t, 16, fake.NewSink(),
		transfer.WithExtensionCache(transfer.NewExtensionCache(bp, 32)),
		transfer.WithBatchSize(4))
	d.Start()

	var capacity uint64
	var extCap int
	require.NoError(t, d.Do(func(w *transfer.Writer, ext *transfer.ExtensionCache) {
		capacity = w.Capacity()
		extCap = ext.WriteExtension(transfer.ExtensionBegin, false).Cap()
	}))
	assert.Equal(t, uint64(16), capacity)
	assert.Equal(t, 32, extCap)

	dp := control.NewDebugProbes()
	d.RegisterProbes(dp, "ring0")
	state := dp.DumpState()
	assert.Equal(t, "idle", state["ring0.lease"])
	assert.Equal(t, "open", state["ring0.termination"])
	assert.Equal(t, transfer.Indices{}, state["ring0.indices"])

	require.NoError(t, d.Stop())
	assert.Zero(t, bp.Stats().InUse, "stop returns extension buffers")
}

func TestNewDriver_Validation(t *testing.T) {
	w, _ := newWriter(t, 16)
	_, err := transfer.NewDriver(w, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = transfer.NewDriver(nil, fake.NewSink())
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
