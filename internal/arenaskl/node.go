package arenaskl

import "sync/atomic"

// atomicNodePtr publishes a forward pointer with release semantics and
// reads it with acquire semantics, so a reader that observes a non-nil
// link also observes the fully-initialized node it points to.
type atomicNodePtr = atomic.Pointer[node]
