// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package op

// Op is the interface a long-running operation type satisfies by embedding
// Base and adding ResultPayload. The node and coordinator services track
// their operations through *Info directly; no type in them implements Op.
// It generalizes the source's Op base class, which concrete op kinds
// subclassed, into a small interface a Go struct satisfies by embedding
// Base.
type Op interface {
	// StartID returns the op id assigned when this op was started.
	StartID() int64
	// Status returns the op's current lifecycle status.
	Status() Status
	// ResultPayload returns the value a result-polling HTTP handler should
	// serialize as the op's current (possibly still in-progress) outcome.
	ResultPayload() any
}

// Base is embedded by concrete op types to satisfy Op's StartID and Status
// from a shared *Info, leaving ResultPayload to the embedding type.
type Base struct {
	*Info
}

// StartID returns the embedded Info's op id.
func (b Base) StartID() int64 {
	return b.Info.OpID
}

// Status returns the embedded Info's current status.
func (b Base) Status() Status {
	return b.Info.Status()
}
