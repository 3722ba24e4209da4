package rpcx

import (
	"bufio"
	"bytes"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/roma2023/FileStack/internal/fspath"
)

func roundTrip(t *testing.T, v interface{}) interface{} {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := writeValue(w, v); err != nil {
		t.Fatalf("writeValue(%v): %v", v, err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got, err := readValue(&buf)
	if err != nil {
		t.Fatalf("readValue: %v", err)
	}
	return got
}

func TestCodecRoundTrip(t *testing.T) {
	tcs := []struct {
		name string
		in   interface{}
	}{
		{"nil", nil},
		{"bool true", true},
		{"bool false", false},
		{"int64", int64(-42)},
		{"uint64", uint64(42)},
		{"string", "hello"},
		{"empty string", ""},
		{"bytes", []byte{1, 2, 3}},
		{"string slice", []string{"a", "b", "c"}},
		{"empty string slice", []string{}},
		{"path", fspath.Parse("/a/b/c")},
		{"root path", fspath.Root},
		{"addr", Addr{Network: "tcp", Address: "127.0.0.1:8765"}},
		{"array", []interface{}{int64(1), "two", true}},
		{"nested array", []interface{}{[]interface{}{int64(1)}, "x"}},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := roundTrip(t, tc.in)
			if diff := cmp.Diff(tc.in, got, cmp.Comparer(func(a, b fspath.Path) bool { return a.Equal(b) })); diff != "" {
				t.Errorf("roundtrip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodecRejectsUnsupportedType(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := writeValue(w, struct{}{}); err == nil {
		t.Fatal("expected error encoding an unsupported type")
	}
}

func TestCodecRemoteFailureRoundTrip(t *testing.T) {
	in := &remoteFailure{Kind: KindBounds, Message: "offset out of range"}
	got := roundTrip(t, in)
	rf, ok := got.(*remoteFailure)
	if !ok {
		t.Fatalf("got %T, want *remoteFailure", got)
	}
	if rf.Kind != in.Kind || rf.Message != in.Message {
		t.Errorf("got %+v, want %+v", rf, in)
	}
}

func echoSpec() InterfaceSpec {
	return InterfaceSpec{
		Name: "Echo",
		Methods: []MethodSpec{
			{Name: "Echo", ParamTypes: []Tag{TagString}},
			{Name: "Fail", ParamTypes: []Tag{}},
		},
	}
}

func TestInterfaceSpecValidatePanicsOnDuplicateMethod(t *testing.T) {
	spec := InterfaceSpec{Name: "Dup", Methods: []MethodSpec{
		{Name: "M"}, {Name: "M"},
	}}
	defer func() {
		if recover() == nil {
			t.Fatal("expected Validate to panic on duplicate method name")
		}
	}()
	spec.Validate()
}

func TestNewServerPanicsOnMissingHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected NewServer to panic on a missing handler")
		}
	}()
	NewServer(echoSpec(), map[string]HandlerFunc{
		"Echo": func(args []interface{}) (interface{}, error) { return args[0], nil },
	}, nil)
}

func TestNewServerPanicsOnUndeclaredHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected NewServer to panic on an undeclared handler")
		}
	}()
	handlers := map[string]HandlerFunc{
		"Echo":     func(args []interface{}) (interface{}, error) { return args[0], nil },
		"Fail":     func(args []interface{}) (interface{}, error) { return nil, &RemoteError{Kind: KindIO, Message: "boom"} },
		"NotThere": func(args []interface{}) (interface{}, error) { return nil, nil },
	}
	NewServer(echoSpec(), handlers, nil)
}

func startEchoServer(t *testing.T) *Proxy {
	t.Helper()
	spec := echoSpec()
	srv := NewServer(spec, map[string]HandlerFunc{
		"Echo": func(args []interface{}) (interface{}, error) { return args[0], nil },
		"Fail": func(args []interface{}) (interface{}, error) {
			return nil, &RemoteError{Kind: KindBounds, Message: "always fails"}
		},
	}, nil)
	addr, err := srv.Start("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return NewProxy(spec, Addr{Network: "tcp", Address: addr.String()})
}

func TestProxyCallSuccess(t *testing.T) {
	proxy := startEchoServer(t)
	reply, err := proxy.Call("Echo", "hello")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if reply != "hello" {
		t.Errorf("got %v, want %q", reply, "hello")
	}
}

func TestProxyCallRemoteFailure(t *testing.T) {
	proxy := startEchoServer(t)
	_, err := proxy.Call("Fail")
	if err == nil {
		t.Fatal("expected an error")
	}
	re, ok := err.(*RemoteError)
	if !ok {
		t.Fatalf("got %T, want *RemoteError", err)
	}
	if re.Kind != KindBounds {
		t.Errorf("got kind %v, want %v", re.Kind, KindBounds)
	}
}

func TestProxyCallTransportErrorOnUnreachableAddr(t *testing.T) {
	proxy := NewProxy(echoSpec(), Addr{Network: "tcp", Address: "127.0.0.1:1"})
	_, err := proxy.Call("Echo", "x")
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*TransportError); !ok {
		t.Fatalf("got %T, want *TransportError", err)
	}
}

func TestProxyCallUnknownMethodPanics(t *testing.T) {
	proxy := startEchoServer(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected Call to panic on an unbound method name")
		}
	}()
	proxy.Call("NotAMethod")
}

// TestServerSurvivesMalformedPathArgument proves a client that sends a
// well-formed wire frame whose TagPath payload is malformed (no leading
// "/") cannot crash the server: fspath.Parse panics decoding it, and the
// server must recover rather than let that panic escape the unrecovered
// per-connection goroutine spawned by acceptLoop.
func TestServerSurvivesMalformedPathArgument(t *testing.T) {
	spec := InterfaceSpec{
		Name: "PathEcho",
		Methods: []MethodSpec{
			{Name: "Echo", ParamTypes: []Tag{TagPath}},
		},
	}
	srv := NewServer(spec, map[string]HandlerFunc{
		"Echo": func(args []interface{}) (interface{}, error) { return args[0], nil },
	}, nil)
	addr, err := srv.Start("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	w := bufio.NewWriter(conn)
	if err := writeBytesRaw(w, []byte("Echo")); err != nil {
		t.Fatalf("write method name: %v", err)
	}
	// One-element argument array; the element claims to be a TagPath but
	// carries a payload fspath.Parse rejects by panicking (no leading "/").
	if err := w.WriteByte(byte(TagArray)); err != nil {
		t.Fatalf("write array tag: %v", err)
	}
	if err := writeUint64(w, 1); err != nil {
		t.Fatalf("write array length: %v", err)
	}
	if err := w.WriteByte(byte(TagPath)); err != nil {
		t.Fatalf("write path tag: %v", err)
	}
	if err := writeBytesRaw(w, []byte("not-a-path")); err != nil {
		t.Fatalf("write malformed path payload: %v", err)
	}
	// Trailing bytes standing in for the parameter type descriptors; the
	// server never reaches them, since decoding the path argument above
	// already fails.
	if err := w.WriteByte(byte(TagArray)); err != nil {
		t.Fatalf("write type descriptor tag: %v", err)
	}
	if err := writeUint64(w, 0); err != nil {
		t.Fatalf("write type descriptor length: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	conn.Close()

	// The server must still be accepting connections afterward: a clean
	// call on the same listener proves the malformed request's panic was
	// contained to its own connection rather than taking the process down.
	proxy := NewProxy(spec, Addr{Network: "tcp", Address: addr.String()})
	reply, err := proxy.Call("Echo", fspath.Parse("/ok"))
	if err != nil {
		t.Fatalf("Call after malformed request: %v", err)
	}
	p, ok := reply.(fspath.Path)
	if !ok || !p.Equal(fspath.Parse("/ok")) {
		t.Errorf("got %v, want /ok", reply)
	}
}

func TestProxyEqual(t *testing.T) {
	a := NewProxy(echoSpec(), Addr{Network: "tcp", Address: "127.0.0.1:1"})
	b := NewProxy(echoSpec(), Addr{Network: "tcp", Address: "127.0.0.1:1"})
	c := NewProxy(echoSpec(), Addr{Network: "tcp", Address: "127.0.0.1:2"})
	if !a.Equal(b) {
		t.Error("expected proxies with the same interface and addr to be equal")
	}
	if a.Equal(c) {
		t.Error("expected proxies with different addrs to be unequal")
	}
}
