package rpcx

// Addr is an opaque handle identifying one endpoint of the RPC transport:
// a storage reference or command reference in the naming node's
// vocabulary, or the bootstrap address of the naming node itself. Addr is
// a small comparable struct, so it is directly usable as a map key and
// with ==, matching the specification's "opaque, equality-comparable and
// hashable" requirement for storage/command references.
type Addr struct {
	// Network is the dial network, e.g. "tcp".
	Network string
	// Address is the dial address, e.g. "127.0.0.1:8765".
	Address string
}

// String renders a debug string for Addr.
func (a Addr) String() string {
	return a.Network + "://" + a.Address
}
