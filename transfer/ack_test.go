package transfer_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/fake"
	"github.com/momentics/hioload-ring/transfer"
)

// flushAll flushes chunks back to back and returns their regions.
func flushAll(t *testing.T, w *transfer.Writer, chunks ...int) []api.Region {
	t.Helper()
	var regions []api.Region
	for _, n := range chunks {
		var err error
		regions, err = w.Flush(regions, payload(n, 0), 1)
		require.NoError(t, err)
	}
	return regions
}

func requireInvariants(t *testing.T, w *transfer.Writer) {
	t.Helper()
	idx := w.Indices()
	require.LessOrEqual(t, idx.AckIndex, idx.TransferIndex)
	require.LessOrEqual(t, idx.InFlight(), w.Capacity())
	require.LessOrEqual(t, idx.AckIndex+idx.AckProgress, idx.AckHighMark)
	require.LessOrEqual(t, idx.AckHighMark, idx.TransferIndex)
	require.GreaterOrEqual(t, idx.AckHighMark, idx.AckIndex)
}

func TestAcknowledge_GapHoldsUntilFilled(t *testing.T) {
	w, _ := newWriter(t, 256)
	regions := flushAll(t, w, 100, 50, 50)
	near, gap, far := regions[0], regions[1], regions[2]

	require.NoError(t, w.AcknowledgeRegion(far))
	require.NoError(t, w.AcknowledgeRegion(near))
	idx := w.Indices()
	assert.Zero(t, idx.AckIndex)
	assert.Equal(t, uint64(200), idx.AckHighMark)
	assert.Equal(t, uint64(150), idx.AckProgress)
	requireInvariants(t, w)

	require.NoError(t, w.AcknowledgeRegion(gap))
	idx = w.Indices()
	assert.Equal(t, uint64(200), idx.AckIndex)
	assert.Zero(t, idx.AckProgress)
	assert.Equal(t, 256, w.WritableBytes())
}

func TestAcknowledge_ContiguousPrefixAdvancesFirst(t *testing.T) {
	w, _ := newWriter(t, 256)
	regions := flushAll(t, w, 100, 50, 50)

	require.NoError(t, w.AcknowledgeRegion(regions[0]))
	assert.Equal(t, uint64(100), w.Indices().AckIndex)

	require.NoError(t, w.AcknowledgeRegion(regions[2]))
	assert.Equal(t, uint64(100), w.Indices().AckIndex)
	requireInvariants(t, w)

	require.NoError(t, w.AcknowledgeRegion(regions[1]))
	assert.Equal(t, uint64(200), w.Indices().AckIndex)
}

func TestAcknowledge_AnyOrderConverges(t *testing.T) {
	chunks := []int{7, 13, 1, 30, 9, 4, 20, 16, 8, 20}
	total := uint64(0)
	for _, n := range chunks {
		total += uint64(n)
	}

	for seed := int64(0); seed < 50; seed++ {
		w, _ := newWriter(t, 128)
		regions := flushAll(t, w, chunks...)
		fake.Shuffled(seed)(regions)

		require.NoError(t, w.Acknowledge(regions), "seed %d", seed)
		idx := w.Indices()
		assert.Equal(t, total, idx.AckIndex, "seed %d", seed)
		assert.Zero(t, idx.AckProgress, "seed %d", seed)
	}
}

func TestAcknowledge_LapInferenceAcrossWrap(t *testing.T) {
	lm := fake.NewLeaseManager(16)
	cfg := transfer.DefaultConfig()
	cfg.Capacity = 16
	cfg.InitialTransferIndex = 40
	cfg.InitialAckIndex = 40
	w, err := transfer.NewWriter(lm, cfg)
	require.NoError(t, err)

	regions := flushAll(t, w, 12)
	require.Len(t, regions, 2)
	base := w.LeaseAddress()
	assert.Equal(t, base+8, regions[0].Address)
	assert.Equal(t, base, regions[1].Address)

	// The wrapped tail belongs to the next lap.
	require.NoError(t, w.AcknowledgeRegion(regions[1]))
	idx := w.Indices()
	assert.Equal(t, uint64(40), idx.AckIndex)
	assert.Equal(t, uint64(52), idx.AckHighMark)

	require.NoError(t, w.AcknowledgeRegion(regions[0]))
	assert.Equal(t, uint64(52), w.Indices().AckIndex)
}

func TestAcknowledge_OutOfRange(t *testing.T) {
	t.Run("before lease", func(t *testing.T) {
		w, _ := newWriter(t, 16)
		err := w.Acknowledge([]api.Region{{Address: fake.Base, Length: 1}})
		assert.ErrorIs(t, err, api.ErrAckOutOfRange)
	})

	cases := map[string]func(base uint64, written []api.Region) api.Region{
		"below base": func(base uint64, _ []api.Region) api.Region {
			return api.Region{Address: base - 1, Length: 1}
		},
		"past ring end": func(base uint64, _ []api.Region) api.Region {
			return api.Region{Address: base + 16, Length: 1}
		},
		"unwritten bytes": func(base uint64, _ []api.Region) api.Region {
			return api.Region{Address: base + 8, Length: 4}
		},
		"overruns transfer index": func(base uint64, written []api.Region) api.Region {
			r := written[1]
			r.Length += 2
			return r
		},
	}
	for name, mk := range cases {
		t.Run(name, func(t *testing.T) {
			w, _ := newWriter(t, 16)
			written := flushAll(t, w, 4, 4)
			before := w.Indices()

			err := w.AcknowledgeRegion(mk(w.LeaseAddress(), written))
			require.ErrorIs(t, err, api.ErrAckOutOfRange)
			assert.Equal(t, api.ErrCodeAckOutOfRange, api.CodeOf(err))
			assert.Equal(t, before, w.Indices(), "faulting region must not apply")
		})
	}
}

func TestAcknowledge_ReplayIsRejected(t *testing.T) {
	w, _ := newWriter(t, 16)
	regions := flushAll(t, w, 10)
	require.NoError(t, w.Acknowledge(regions))

	err := w.Acknowledge(regions)
	require.ErrorIs(t, err, api.ErrAckOutOfRange)
	assert.Equal(t, uint64(10), w.Indices().AckIndex)
}

func TestAcknowledge_DuplicateTripsProgress(t *testing.T) {
	w, _ := newWriter(t, 64)
	regions := flushAll(t, w, 4, 16)

	require.NoError(t, w.AcknowledgeRegion(regions[1]))
	before := w.Indices()
	err := w.AcknowledgeRegion(regions[1])
	require.ErrorIs(t, err, api.ErrAckOutOfRange)
	assert.Equal(t, before, w.Indices())
	assert.Equal(t, uint64(16), before.AckProgress)
}

func TestAcknowledge_BatchStopsAtFirstFault(t *testing.T) {
	w, _ := newWriter(t, 64)
	regions := flushAll(t, w, 10, 10)
	batch := []api.Region{regions[0], {Address: w.LeaseAddress() + 40, Length: 1}, regions[1]}

	err := w.Acknowledge(batch)
	require.ErrorIs(t, err, api.ErrAckOutOfRange)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1, apiErr.Context["batchPosition"])
	assert.Equal(t, uint64(10), w.Indices().AckIndex)
}

func TestAcknowledge_HasAcknowledged(t *testing.T) {
	w, _ := newWriter(t, 16)
	assert.False(t, w.HasAcknowledged())
	flushAll(t, w, 4)
	require.NoError(t, w.Acknowledge(nil))
	assert.True(t, w.HasAcknowledged())
	assert.Zero(t, w.Indices().AckIndex)
}

func TestAcknowledge_LateAckAfterRelease(t *testing.T) {
	w, _ := newWriter(t, 16)
	regions := flushAll(t, w, 6)
	require.True(t, w.ReleaseLease())

	require.NoError(t, w.Acknowledge(regions))
	assert.Equal(t, uint64(6), w.Indices().AckIndex)
}

func TestWriter_BackpressureConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	w, lm := newWriter(t, 64)
	var outstanding []api.Region
	var written, read []byte

	for step := 0; step < 5000; step++ {
		if rng.Intn(3) > 0 {
			n := rng.Intn(w.WritableBytes() + 1)
			src := payload(n, byte(step))
			var err error
			before := len(outstanding)
			outstanding, err = w.Flush(outstanding, src, 1)
			require.NoError(t, err)
			written = append(written, src...)
			for _, r := range outstanding[before:] {
				read = append(read, lm.View(r.Address, r.Length)...)
			}
		} else if len(outstanding) > 0 {
			rng.Shuffle(len(outstanding), func(i, j int) {
				outstanding[i], outstanding[j] = outstanding[j], outstanding[i]
			})
			k := rng.Intn(len(outstanding)) + 1
			require.NoError(t, w.Acknowledge(outstanding[:k]))
			outstanding = append(outstanding[:0], outstanding[k:]...)
		}
		requireInvariants(t, w)
	}

	require.NoError(t, w.Acknowledge(outstanding))
	idx := w.Indices()
	assert.Equal(t, idx.TransferIndex, idx.AckIndex)
	assert.Equal(t, uint64(len(written)), idx.TransferIndex)
	assert.Equal(t, written, read)
}
