// Package rpcx implements the custom RPC transport: a connection-per-call
// wire protocol carrying a method name, an argument tuple, and parameter
// type descriptors to a listener, and returning a single reply value or a
// remote-failure envelope.
//
// The codec below is a small length-prefixed, type-tagged encoding for the
// fixed value universe this protocol needs. It is hand-written rather than
// built on a general-purpose serialization library: the wire format is
// itself the subject of this package, not an ambient concern a library
// could absorb (see DESIGN.md).
package rpcx

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/roma2023/FileStack/internal/fspath"
)

// Tag identifies the dynamic type of an encoded value on the wire.
type Tag byte

// The value universe the protocol needs to move across the wire: method
// arguments, results, and the remote-failure envelope.
const (
	TagNil Tag = iota
	TagBool
	TagInt64
	TagUint64
	TagString
	TagBytes
	TagStringSlice
	TagPath
	TagAddr
	TagArray
	TagFailure
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagBool:
		return "bool"
	case TagInt64:
		return "int64"
	case TagUint64:
		return "uint64"
	case TagString:
		return "string"
	case TagBytes:
		return "bytes"
	case TagStringSlice:
		return "[]string"
	case TagPath:
		return "path"
	case TagAddr:
		return "addr"
	case TagArray:
		return "array"
	case TagFailure:
		return "failure"
	default:
		return fmt.Sprintf("tag(%d)", byte(t))
	}
}

// writeValue encodes v with a leading type tag. The supported dynamic
// types are bool, int64, uint64, string, []byte, []string, fspath.Path,
// Addr, []interface{}, *remoteFailure, and nil.
func writeValue(w *bufio.Writer, v interface{}) error {
	switch x := v.(type) {
	case nil:
		return w.WriteByte(byte(TagNil))
	case bool:
		if err := w.WriteByte(byte(TagBool)); err != nil {
			return err
		}
		b := byte(0)
		if x {
			b = 1
		}
		return w.WriteByte(b)
	case int64:
		if err := w.WriteByte(byte(TagInt64)); err != nil {
			return err
		}
		return writeUint64(w, uint64(x))
	case int:
		return writeValue(w, int64(x))
	case uint64:
		if err := w.WriteByte(byte(TagUint64)); err != nil {
			return err
		}
		return writeUint64(w, x)
	case string:
		if err := w.WriteByte(byte(TagString)); err != nil {
			return err
		}
		return writeBytesRaw(w, []byte(x))
	case []byte:
		if err := w.WriteByte(byte(TagBytes)); err != nil {
			return err
		}
		return writeBytesRaw(w, x)
	case []string:
		if err := w.WriteByte(byte(TagStringSlice)); err != nil {
			return err
		}
		if err := writeUint64(w, uint64(len(x))); err != nil {
			return err
		}
		for _, s := range x {
			if err := writeBytesRaw(w, []byte(s)); err != nil {
				return err
			}
		}
		return nil
	case fspath.Path:
		if err := w.WriteByte(byte(TagPath)); err != nil {
			return err
		}
		return writeBytesRaw(w, []byte(x.String()))
	case Addr:
		if err := w.WriteByte(byte(TagAddr)); err != nil {
			return err
		}
		if err := writeBytesRaw(w, []byte(x.Network)); err != nil {
			return err
		}
		return writeBytesRaw(w, []byte(x.Address))
	case []interface{}:
		if err := w.WriteByte(byte(TagArray)); err != nil {
			return err
		}
		if err := writeUint64(w, uint64(len(x))); err != nil {
			return err
		}
		for _, e := range x {
			if err := writeValue(w, e); err != nil {
				return err
			}
		}
		return nil
	case *remoteFailure:
		if err := w.WriteByte(byte(TagFailure)); err != nil {
			return err
		}
		if err := w.WriteByte(byte(x.Kind)); err != nil {
			return err
		}
		return writeBytesRaw(w, []byte(x.Message))
	default:
		return fmt.Errorf("rpcx: codec cannot encode value of type %T", v)
	}
}

// readValue decodes one tagged value from r.
func readValue(r io.Reader) (interface{}, error) {
	var tagByte [1]byte
	if _, err := io.ReadFull(r, tagByte[:]); err != nil {
		return nil, err
	}
	switch Tag(tagByte[0]) {
	case TagNil:
		return nil, nil
	case TagBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case TagInt64:
		u, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		return int64(u), nil
	case TagUint64:
		return readUint64(r)
	case TagString:
		b, err := readBytesRaw(r)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case TagBytes:
		return readBytesRaw(r)
	case TagStringSlice:
		n, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		if n > maxReasonableCount {
			return nil, fmt.Errorf("rpcx: codec refuses to allocate a %d-element []string", n)
		}
		out := make([]string, n)
		for i := range out {
			b, err := readBytesRaw(r)
			if err != nil {
				return nil, err
			}
			out[i] = string(b)
		}
		return out, nil
	case TagPath:
		b, err := readBytesRaw(r)
		if err != nil {
			return nil, err
		}
		return fspath.Parse(string(b)), nil
	case TagAddr:
		network, err := readBytesRaw(r)
		if err != nil {
			return nil, err
		}
		address, err := readBytesRaw(r)
		if err != nil {
			return nil, err
		}
		return Addr{Network: string(network), Address: string(address)}, nil
	case TagArray:
		n, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		if n > maxReasonableCount {
			return nil, fmt.Errorf("rpcx: codec refuses to allocate a %d-element array", n)
		}
		out := make([]interface{}, n)
		for i := range out {
			v, err := readValue(r)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case TagFailure:
		var kindByte [1]byte
		if _, err := io.ReadFull(r, kindByte[:]); err != nil {
			return nil, err
		}
		msg, err := readBytesRaw(r)
		if err != nil {
			return nil, err
		}
		return &remoteFailure{Kind: Kind(kindByte[0]), Message: string(msg)}, nil
	default:
		return nil, fmt.Errorf("rpcx: codec read unknown tag %d", tagByte[0])
	}
}

func writeUint64(w *bufio.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func writeBytesRaw(w *bufio.Writer, b []byte) error {
	if err := writeUint64(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// maxReasonableCount bounds element counts decoded from the wire
// (TagStringSlice, TagArray) before they drive a make([]T, n) allocation,
// the same way maxReasonable below bounds raw byte-slice lengths.
const maxReasonableCount = 1 << 20

func readBytesRaw(r io.Reader) ([]byte, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	// Guard against a corrupt or adversarial length prefix causing an
	// unbounded allocation before the read itself fails.
	const maxReasonable = 64 << 20
	if n > maxReasonable {
		return nil, fmt.Errorf("rpcx: codec refuses to allocate %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
