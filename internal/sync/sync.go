// Package sync defines the CRDT synchronization boundary this core talks
// to but does not implement (spec §1 Non-goals: "the actual CRDT sync
// transport and library replication are out of scope"). Every local
// mutation the identifier step makes is paired with a sync.Op describing
// the same mutation in CRDT terms, so a real transport can replicate it
// without the core depending on one.
//
// Grounded on original_source/core/src/object/file_identifier/mod.rs's
// sync.shared_create/sync.shared_update/sync.write_ops call shape: each
// database write in that file is produced alongside a CRDTOperation built
// from the entity's SyncId (its public id) plus the field being set.
package sync

import "context"

// OpKind distinguishes the two CRDT operation shapes the identifier step
// produces.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
)

// Op is a single CRDT-replicable mutation, paired 1:1 with a local write.
type Op struct {
	Kind   OpKind
	Entity string // "file_path" or "object"
	PubID  []byte
	Field  string // empty for OpCreate
	Value  any
}

// Channel is the synchronization boundary. SharedCreate/SharedUpdate build
// Op values without performing any I/O; Broadcast is the only method that
// talks to a transport, and a no-op implementation is entirely valid for
// a single-node deployment.
type Channel interface {
	SharedCreate(entity string, pubID []byte) Op
	SharedUpdate(entity string, pubID []byte, field string, value any) Op
	SharedConnect(entity string, pubID []byte, field string, targetPubID []byte) Op
	Broadcast(ctx context.Context, ops []Op) error
}

// NoopChannel builds Ops for bookkeeping but never replicates them
// anywhere; it is the Channel used when no external sync transport is
// configured (the common case for a single-device library).
type NoopChannel struct{}

func (NoopChannel) SharedCreate(entity string, pubID []byte) Op {
	return Op{Kind: OpCreate, Entity: entity, PubID: pubID}
}

func (NoopChannel) SharedUpdate(entity string, pubID []byte, field string, value any) Op {
	return Op{Kind: OpUpdate, Entity: entity, PubID: pubID, Field: field, Value: value}
}

func (NoopChannel) SharedConnect(entity string, pubID []byte, field string, targetPubID []byte) Op {
	return Op{Kind: OpUpdate, Entity: entity, PubID: pubID, Field: field, Value: targetPubID}
}

func (NoopChannel) Broadcast(ctx context.Context, ops []Op) error {
	return nil
}

// Recording wraps NoopChannel and appends every broadcast Op to Ops, for
// tests that assert on the CRDT operations a run produced.
type Recording struct {
	NoopChannel
	Ops []Op
}

func (r *Recording) Broadcast(ctx context.Context, ops []Op) error {
	r.Ops = append(r.Ops, ops...)
	return nil
}

