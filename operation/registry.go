package operation

import (
	"sort"

	"pirate-rpc/codec"
	"pirate-rpc/rpcerr"
)

// Registry maps operation names to stored operations. It is filled before
// serving starts and read-only afterwards, so lookups take no lock.
type Registry[N Name, S any] struct {
	ops map[N]Stored[N, S]
}

func NewRegistry[N Name, S any]() *Registry[N, S] {
	return &Registry[N, S]{ops: make(map[N]Stored[N, S])}
}

// Register stores op under op.Name(). A later registration under the same
// name replaces the earlier one.
func (r *Registry[N, S]) Register(op Stored[N, S]) {
	r.ops[op.Name()] = op
}

func (r *Registry[N, S]) Lookup(name N) (Stored[N, S], bool) {
	op, ok := r.ops[name]
	return op, ok
}

func (r *Registry[N, S]) Len() int {
	return len(r.ops)
}

// Names returns the registered names ordered by their rendering.
func (r *Registry[N, S]) Names() []N {
	names := make([]N, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i].String() < names[j].String()
	})
	return names
}

// Dispatch resolves name and runs the stored operation against state. The
// state lock is held for exactly this one call. Unknown names fail with
// rpcerr.NotFound without touching state; decode and handler failures are
// returned unchanged.
func (r *Registry[N, S]) Dispatch(c codec.Codec, name N, payload []byte, state *State[S]) ([]byte, error) {
	op, ok := r.ops[name]
	if !ok {
		return nil, rpcerr.NotFound(name.String())
	}

	var out []byte
	err := state.With(func(s *S) error {
		var err error
		out, err = op.Handle(c, payload, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
