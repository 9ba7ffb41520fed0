// File: protocol/region_codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-layout region list:
//
//	uint32 itemBytes | uint32 count | count * (uint64 address, uint32 length, uint64 streamId)
//
// all little endian. itemBytes lets readers skip item fields they do not know.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/momentics/hioload-ring/api"
)

const (
	// RegionItemBytes is the encoded size of one region.
	RegionItemBytes = 8 + 4 + 8

	regionListHeader = 8

	// MaxRegionsPerList bounds a decoded list.
	MaxRegionsPerList = 1 << 16
)

// ErrMalformedRegions reports a region list that cannot be decoded.
var ErrMalformedRegions = errors.New("malformed region list")

// RegionListSize returns the encoded size of n regions.
func RegionListSize(n int) int { return regionListHeader + n*RegionItemBytes }

// AppendRegions appends the encoded list to dst.
func AppendRegions(dst []byte, regions []api.Region) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, RegionItemBytes)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(regions)))
	for _, r := range regions {
		dst = binary.LittleEndian.AppendUint64(dst, r.Address)
		dst = binary.LittleEndian.AppendUint32(dst, r.Length)
		dst = binary.LittleEndian.AppendUint64(dst, r.StreamID)
	}
	return dst
}

// DecodeRegions parses one list from raw and appends its regions to dst.
// Returns regions, consumed bytes, and error.
// If the list is incomplete, returns (dst, 0, nil).
func DecodeRegions(raw []byte, dst []api.Region) ([]api.Region, int, error) {
	if len(raw) < regionListHeader {
		return dst, 0, nil
	}
	itemBytes := int(binary.LittleEndian.Uint32(raw))
	count := int(binary.LittleEndian.Uint32(raw[4:]))
	if itemBytes < RegionItemBytes {
		return dst, 0, fmt.Errorf("%w: item size %d", ErrMalformedRegions, itemBytes)
	}
	if count > MaxRegionsPerList {
		return dst, 0, fmt.Errorf("%w: %d regions", ErrMalformedRegions, count)
	}
	total := regionListHeader + count*itemBytes
	if len(raw) < total {
		return dst, 0, nil
	}
	for off := regionListHeader; off < total; off += itemBytes {
		item := raw[off:]
		dst = append(dst, api.Region{
			Address:  binary.LittleEndian.Uint64(item),
			Length:   binary.LittleEndian.Uint32(item[8:]),
			StreamID: binary.LittleEndian.Uint64(item[12:]),
		})
	}
	return dst, total, nil
}
