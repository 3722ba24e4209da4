package rpcx

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/roma2023/FileStack/pkg/filestack"
)

// HandlerFunc implements one method of a bound interface. It receives the
// decoded argument tuple in declaration order and returns either the
// method's result or the error it failed with. A non-nil error is always
// wrapped into the wire's remote-failure envelope — HandlerFunc never
// needs to, and must not, return a *TransportError itself; that error
// kind is reserved for failures of the transport, not the bound method.
type HandlerFunc func(args []interface{}) (interface{}, error)

type serverState int32

const (
	serverNew serverState = iota
	serverListening
	serverStopped
)

// Server is the callee side of the RPC transport: it binds one listening
// TCP socket and dispatches each accepted connection's single call to a
// hand-written dispatch table built from an InterfaceSpec, in place of
// reflective method lookup (see DESIGN.md).
//
// Server's lifecycle is new -> listening -> stopped (terminal); restart
// from stopped is not supported, matching the specification.
type Server struct {
	spec     InterfaceSpec
	handlers map[string]HandlerFunc
	logger   filestack.Logger

	// OnListenError is called on a top-level exception in the accept
	// loop; its return value decides whether to keep accepting (true) or
	// shut down (false). A nil hook always shuts down.
	OnListenError func(err error) (keepGoing bool)
	// OnStopped is called once with the cause, or nil for a clean stop.
	OnStopped func(cause error)

	mu       sync.Mutex
	listener net.Listener
	state    int32 // serverState, accessed atomically
	wg       sync.WaitGroup
}

// NewServer validates handlers against spec and returns an unstarted
// Server. It panics if handlers does not implement exactly the methods
// spec declares: that mismatch is a programmer error, caught here rather
// than at the first mismatched call.
func NewServer(spec InterfaceSpec, handlers map[string]HandlerFunc, logger filestack.Logger) *Server {
	spec.Validate()
	for _, m := range spec.Methods {
		if _, ok := handlers[m.Name]; !ok {
			panic(fmt.Sprintf("rpcx: server for interface %q is missing a handler for method %q", spec.Name, m.Name))
		}
	}
	for name := range handlers {
		if _, ok := spec.method(name); !ok {
			panic(fmt.Sprintf("rpcx: server for interface %q has a handler for undeclared method %q", spec.Name, name))
		}
	}
	return &Server{spec: spec, handlers: handlers, logger: logger, state: int32(serverNew)}
}

// Start creates the listening socket (on addr, or system-assigned if
// addr's port is ":0" or empty), spawns the accept loop, and returns the
// bound address.
func (s *Server) Start(network, addr string) (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if serverState(s.state) != serverNew {
		return nil, errors.New("rpcx: server already started")
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	atomic.StoreInt32(&s.state, int32(serverListening))
	go s.acceptLoop()
	return ln.Addr(), nil
}

// Stop closes the listening socket, which breaks the accept loop.
// In-flight handlers are allowed to complete; no new ones are accepted.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if serverState(s.state) != serverListening {
		return nil
	}
	atomic.StoreInt32(&s.state, int32(serverStopped))
	err := s.listener.Close()
	if s.OnStopped != nil {
		s.OnStopped(nil)
	}
	return err
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if serverState(atomic.LoadInt32(&s.state)) == serverStopped {
				return
			}
			keepGoing := false
			if s.OnListenError != nil {
				keepGoing = s.OnListenError(err)
			}
			if !keepGoing {
				atomic.StoreInt32(&s.state, int32(serverStopped))
				if s.OnStopped != nil {
					s.OnStopped(err)
				}
				return
			}
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	method, args, ok := s.decodeRequest(conn)
	if !ok {
		return
	}

	spec, ok := s.spec.method(method)
	if !ok {
		s.writeReply(conn, nil, &remoteFailure{Kind: KindNotFound, Message: fmt.Sprintf("no such method %q", method)})
		return
	}
	if len(args) != len(spec.ParamTypes) {
		s.writeReply(conn, nil, &remoteFailure{Kind: KindNotFound, Message: fmt.Sprintf("method %q expects %d arguments, got %d", method, len(spec.ParamTypes), len(args))})
		return
	}

	handler := s.handlers[method]
	result, callErr := s.invoke(handler, args)
	if callErr != nil {
		var re *RemoteError
		if errors.As(callErr, &re) {
			s.writeReply(conn, nil, &remoteFailure{Kind: re.Kind, Message: re.Message})
			return
		}
		s.writeReply(conn, nil, &remoteFailure{Kind: KindIO, Message: callErr.Error()})
		return
	}
	s.writeReply(conn, result, nil)
}

// decodeRequest reads one request's method name, argument tuple, and
// parameter type descriptors off conn. It recovers from any panic raised
// while decoding — notably fspath.Parse panicking on a malformed TagPath
// value — and reports it as a failed decode rather than letting it escape
// into handleConn's unrecovered per-connection goroutine (see acceptLoop).
// Without this, one client sending a malformed path argument would crash
// the whole process rather than just failing its own call.
func (s *Server) decodeRequest(conn net.Conn) (method string, args []interface{}, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Errorf("rpcx: server %q: recovered from panic decoding request: %v", s.spec.Name, r)
			}
			s.writeReply(conn, nil, &remoteFailure{Kind: KindIO, Message: fmt.Sprintf("malformed request: %v", r)})
			method, args, ok = "", nil, false
		}
	}()

	r := bufio.NewReader(conn)
	var err error
	method, err = readString(r)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("rpcx: server %q: reading method name: %v", s.spec.Name, err)
		}
		return "", nil, false
	}
	argsVal, err := readValue(r)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("rpcx: server %q: reading arguments: %v", s.spec.Name, err)
		}
		return "", nil, false
	}
	args, _ = argsVal.([]interface{})
	if _, err := readBytesRaw(r); err != nil {
		// Parameter type descriptors. The server trusts its own
		// InterfaceSpec over whatever the wire claims; it reads and
		// discards them so the connection's framing stays aligned for
		// any future keep-alive use of the same socket.
		if s.logger != nil {
			s.logger.Errorf("rpcx: server %q: reading parameter type descriptors: %v", s.spec.Name, err)
		}
		return "", nil, false
	}
	return method, args, true
}

// invoke calls handler and converts any panic inside it into an error,
// so one bad handler cannot take down the accept loop or leave the
// caller's connection hanging open. No RPC-shaped code in the retrieved
// corpus dispatches arbitrary bound methods the way this package's
// callers do, so there is no teacher pattern to ground this on directly;
// it is the one defensive addition made purely to keep a single
// misbehaving handler from being indistinguishable from a hung network
// call (see DESIGN.md).
func (s *Server) invoke(handler HandlerFunc, args []interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rpcx: handler panicked: %v", r)
		}
	}()
	return handler(args)
}

func (s *Server) writeReply(conn net.Conn, result interface{}, failure *remoteFailure) {
	w := bufio.NewWriter(conn)
	var err error
	if failure != nil {
		err = writeValue(w, failure)
	} else {
		err = writeValue(w, result)
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil && s.logger != nil {
		s.logger.Errorf("rpcx: server %q: writing reply: %v", s.spec.Name, err)
	}
}

func readString(r *bufio.Reader) (string, error) {
	b, err := readBytesRaw(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
