// Package transfer
// Author: momentics <momentics@gmail.com>
//
// Write side of a flow-controlled, zero-copy transfer channel.
//
// A Writer copies producer bytes into a leased, power-of-two ring of shared
// memory and emits api.Region descriptors instead of the bytes themselves.
// The consumer dereferences the regions and echoes them back; Acknowledge
// folds those echoes, in any order and grouping, into the acknowledged
// index that frees ring space. Ring writer and acknowledgment tracker share
// one index set and are one type.
//
// A Writer has a single owner: all Flush and Acknowledge calls for one
// Writer must be serialized by the caller. Driver provides that owner as an
// event loop. Only lease release and termination are safe to race.
package transfer
