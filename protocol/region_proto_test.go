package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/protocol"
)

func TestRegionProto_RoundTrip(t *testing.T) {
	raw := protocol.MarshalRegionsProto(nil, sample)
	got, err := protocol.UnmarshalRegionsProto(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, sample, got)
}

func TestRegionProto_Empty(t *testing.T) {
	assert.Empty(t, protocol.MarshalRegionsProto(nil, nil))
	got, err := protocol.UnmarshalRegionsProto(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRegionProto_SkipsUnknownFields(t *testing.T) {
	var region []byte
	region = protowire.AppendTag(region, 9, protowire.VarintType)
	region = protowire.AppendVarint(region, 123)
	region = protowire.AppendTag(region, 2, protowire.VarintType)
	region = protowire.AppendVarint(region, 5)
	region = protowire.AppendTag(region, 1, protowire.Fixed64Type)
	region = protowire.AppendFixed64(region, 77)

	var list []byte
	list = protowire.AppendTag(list, 4, protowire.BytesType)
	list = protowire.AppendBytes(list, []byte("ignored"))
	list = protowire.AppendTag(list, 1, protowire.BytesType)
	list = protowire.AppendBytes(list, region)

	got, err := protocol.UnmarshalRegionsProto(list, nil)
	require.NoError(t, err)
	assert.Equal(t, []api.Region{{Address: 77, Length: 5}}, got)
}

func TestRegionProto_Malformed(t *testing.T) {
	raw := protocol.MarshalRegionsProto(nil, sample)
	_, err := protocol.UnmarshalRegionsProto(raw[:len(raw)-3], nil)
	assert.ErrorIs(t, err, protocol.ErrMalformedRegions)

	var bad []byte
	bad = protowire.AppendTag(bad, 2, protowire.VarintType)
	bad = protowire.AppendVarint(bad, 1<<33)
	list := protowire.AppendTag(nil, 1, protowire.BytesType)
	list = protowire.AppendBytes(list, bad)
	_, err = protocol.UnmarshalRegionsProto(list, nil)
	assert.ErrorIs(t, err, protocol.ErrMalformedRegions)
}
