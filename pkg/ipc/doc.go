// Package ipc implements the cross-process arbitration plane: one gRPC
// server (hosted by the pipeline's root process) backing both
// INTER-flavor queues (QueueHome) and the process-wide shared map
// (KVHome), reachable by every PROCESS-isolated worker. See pkg/queue
// and pkg/memory for the higher-level types nodes actually use.
package ipc
