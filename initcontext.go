package collab

import (
	"strings"

	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/replica"
	"github.com/latticekit/collab/wire"
)

// InitContext is handed to a collab factory at construction time. It is
// the structural implementation of primitive.Host (LocalReplica, Enqueue)
// so that register/counter/set/list constructors can accept it directly
// as a primitive.Host argument without this package importing primitive.
// It also lets a composite collab (set.DeletingMut, collabmap.Lazy) mint
// InitContexts for children it constructs dynamically.
type InitContext struct {
	rt   *Runtime
	path []string
}

// LocalReplica returns the owning runtime's replica id.
func (ic *InitContext) LocalReplica() replica.ID {
	return ic.rt.replicaID
}

// Enqueue stages payload for the current transaction, to be delivered to
// the collab at this context's name-path once the transaction commits.
func (ic *InitContext) Enqueue(payload []byte, req causal.MetadataRequest) {
	ic.rt.enqueue(ic.path, payload, req)
}

// NamePath returns this context's collab's address from the root.
func (ic *InitContext) NamePath() wire.NamePath {
	out := make([]string, len(ic.path))
	copy(out, ic.path)
	return out
}

// Logger returns the runtime's logger, for collabs that want to log
// warnings (e.g. a set discarding a delete for an unknown value).
func (ic *InitContext) Logger() Logger {
	return ic.rt.logger
}

// Child returns an InitContext for a dynamically created child named
// name, used by composite collabs that construct children on demand
// (set.DeletingMut's per-(sender,counter) elements, collabmap.Lazy's
// per-key values).
func (ic *InitContext) Child(name string) *InitContext {
	path := make([]string, len(ic.path)+1)
	copy(path, ic.path)
	path[len(ic.path)] = name
	return &InitContext{rt: ic.rt, path: path}
}

// PathString renders the context's name-path for log messages and panics.
func (ic *InitContext) PathString() string {
	return strings.Join(ic.path, "/")
}
