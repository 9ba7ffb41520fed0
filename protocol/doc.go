// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Wire codecs for region descriptor lists exchanged between a transfer
// ring writer and its consumer.
//
// Includes:
//   - Fixed-layout little-endian list with an item-size header
//   - Protobuf wire-format list for peers that speak protobuf
//
// Both codecs append into caller buffers and decode into caller slices.
package protocol
