package rpcx

import (
	"bufio"
	"fmt"
	"net"
)

// Proxy is the caller side of the RPC transport, bound to one interface
// and one remote Addr. Each Call opens a fresh connection, writes the
// method name, argument tuple, and parameter type descriptors, reads
// back exactly one reply, and closes the connection — there is no
// connection pooling or keep-alive, matching the specification's
// connection-per-call model.
//
// Equality and hashing are defined over (interface name, Addr): two
// Proxy values naming the same interface at the same Addr are
// interchangeable, so namingnode and storagenode can use a Proxy's
// identity fields directly as map keys instead of the Proxy itself.
type Proxy struct {
	spec InterfaceSpec
	addr Addr
}

// NewProxy validates spec and returns a Proxy bound to addr.
func NewProxy(spec InterfaceSpec, addr Addr) *Proxy {
	spec.Validate()
	return &Proxy{spec: spec, addr: addr}
}

// Addr returns the remote endpoint this proxy calls.
func (p *Proxy) Addr() Addr {
	return p.addr
}

// InterfaceName returns the name of the interface this proxy was bound
// to, for use as the stable half of a (interface name, Addr) identity
// key.
func (p *Proxy) InterfaceName() string {
	return p.spec.Name
}

// Equal reports whether p and other are proxies for the same interface
// at the same Addr.
func (p *Proxy) Equal(other *Proxy) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.spec.Name == other.spec.Name && p.addr == other.addr
}

func (p *Proxy) String() string {
	return fmt.Sprintf("%s@%s", p.spec.Name, p.addr)
}

// Call invokes method on the remote endpoint with args, in declaration
// order, and returns its single reply value.
//
// Three outcomes are possible:
//   - the call succeeds: the reply value and a nil error are returned.
//   - the remote implementation rejected the call: a *RemoteError is
//     returned, carrying the taxonomy Kind the bound method failed with.
//   - the transport itself failed (dial, write, read, or a malformed
//     reply): a *TransportError is returned, wrapping the underlying
//     cause.
func (p *Proxy) Call(method string, args ...interface{}) (interface{}, error) {
	spec, ok := p.spec.method(method)
	if !ok {
		panic(fmt.Sprintf("rpcx: proxy for interface %q has no method %q", p.spec.Name, method))
	}
	if len(args) != len(spec.ParamTypes) {
		panic(fmt.Sprintf("rpcx: proxy call to %q.%q expects %d arguments, got %d", p.spec.Name, method, len(spec.ParamTypes), len(args)))
	}

	conn, err := net.Dial(p.addr.Network, p.addr.Address)
	if err != nil {
		return nil, &TransportError{Addr: p.addr, Err: err}
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	if err := writeBytesRaw(w, []byte(method)); err != nil {
		return nil, &TransportError{Addr: p.addr, Err: err}
	}
	argTuple := make([]interface{}, len(args))
	copy(argTuple, args)
	if err := writeValue(w, argTuple); err != nil {
		return nil, &TransportError{Addr: p.addr, Err: err}
	}
	if err := writeBytesRaw(w, paramTypeTags(spec)); err != nil {
		return nil, &TransportError{Addr: p.addr, Err: err}
	}
	if err := w.Flush(); err != nil {
		return nil, &TransportError{Addr: p.addr, Err: err}
	}

	r := bufio.NewReader(conn)
	reply, err := readValue(r)
	if err != nil {
		return nil, &TransportError{Addr: p.addr, Err: err}
	}
	if fail, ok := reply.(*remoteFailure); ok {
		return nil, &RemoteError{Kind: fail.Kind, Message: fail.Message}
	}
	return reply, nil
}
