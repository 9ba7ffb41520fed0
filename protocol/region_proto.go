// File: protocol/region_proto.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Protobuf wire encoding of
//
//	message Region     { fixed64 address = 1; uint32 length = 2; fixed64 stream_id = 3; }
//	message RegionList { repeated Region regions = 1; }
//
// written with protowire so no generated code is needed.

package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/momentics/hioload-ring/api"
)

const (
	fieldRegions  protowire.Number = 1
	fieldAddress  protowire.Number = 1
	fieldLength   protowire.Number = 2
	fieldStreamID protowire.Number = 3
)

// MarshalRegionsProto appends regions to dst as a RegionList message.
func MarshalRegionsProto(dst []byte, regions []api.Region) []byte {
	for _, r := range regions {
		dst = protowire.AppendTag(dst, fieldRegions, protowire.BytesType)
		dst = protowire.AppendVarint(dst, uint64(regionProtoSize(r)))
		dst = appendRegionProto(dst, r)
	}
	return dst
}

func regionProtoSize(r api.Region) int {
	n := protowire.SizeTag(fieldAddress) + protowire.SizeFixed64() +
		protowire.SizeTag(fieldStreamID) + protowire.SizeFixed64()
	if r.Length != 0 {
		n += protowire.SizeTag(fieldLength) + protowire.SizeVarint(uint64(r.Length))
	}
	return n
}

func appendRegionProto(dst []byte, r api.Region) []byte {
	dst = protowire.AppendTag(dst, fieldAddress, protowire.Fixed64Type)
	dst = protowire.AppendFixed64(dst, r.Address)
	if r.Length != 0 {
		dst = protowire.AppendTag(dst, fieldLength, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(r.Length))
	}
	dst = protowire.AppendTag(dst, fieldStreamID, protowire.Fixed64Type)
	dst = protowire.AppendFixed64(dst, r.StreamID)
	return dst
}

// UnmarshalRegionsProto decodes a RegionList message and appends its
// regions to dst. Unknown fields are skipped.
func UnmarshalRegionsProto(b []byte, dst []api.Region) ([]api.Region, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return dst, malformedProto(n)
		}
		b = b[n:]
		if num != fieldRegions || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return dst, malformedProto(n)
			}
			b = b[n:]
			continue
		}
		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return dst, malformedProto(n)
		}
		b = b[n:]
		r, err := unmarshalRegionProto(msg)
		if err != nil {
			return dst, err
		}
		dst = append(dst, r)
	}
	return dst, nil
}

func unmarshalRegionProto(b []byte) (api.Region, error) {
	var r api.Region
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, malformedProto(n)
		}
		b = b[n:]
		switch {
		case num == fieldAddress && typ == protowire.Fixed64Type:
			r.Address, n = protowire.ConsumeFixed64(b)
		case num == fieldStreamID && typ == protowire.Fixed64Type:
			r.StreamID, n = protowire.ConsumeFixed64(b)
		case num == fieldLength && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if n >= 0 && v > math.MaxUint32 {
				return r, fmt.Errorf("%w: length %d overflows uint32", ErrMalformedRegions, v)
			}
			r.Length = uint32(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return r, malformedProto(n)
		}
		b = b[n:]
	}
	return r, nil
}

func malformedProto(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformedRegions, protowire.ParseError(n))
}
