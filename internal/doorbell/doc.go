// Package doorbell provides the cross-context notification primitive used
// by the packet-stream flow-control layer.
//
// A Doorbell has exactly two operations, Ring and Wait. The transport
// assumes nothing else about the mechanism: the session layer that sets up
// a stream decides whether a bell is backed by a channel (both ends in one
// process) or a futex word in shared memory (ends in separate processes),
// and injects the four bells a stream needs during session setup.
//
// Doorbells are edge-triggered and lossy by contract: rings may coalesce,
// and a wait may return spuriously or because of a stale ring. A waiter
// must therefore re-check every condition it sleeps on after every wake.
// The flow-control wrappers in internal/stream are written against exactly
// this contract.
package doorbell
