package rpcx

import "fmt"

// MethodSpec describes one method of a bound interface: its name and the
// type tags of its parameters, in order. Every interface method can fail
// with the distinguished transport error (*TransportError); that error is
// inherent to every Proxy.Call, so a MethodSpec carries no error
// declarations at all.
type MethodSpec struct {
	Name       string
	ParamTypes []Tag
}

// InterfaceSpec is the fixed set of named methods, with declared
// parameter types, that one interface type exposes over the transport.
// It plays the role the specification assigns to compile-time interface
// enumeration: NewServer checks at construction time that its handlers
// implement exactly the methods the InterfaceSpec declares, and a Proxy
// panics on a call to a method its InterfaceSpec does not declare. A
// proxy and a server built from different InterfaceSpecs are not compared
// with each other; a method the server does not declare fails at call
// time with a not-found remote error.
type InterfaceSpec struct {
	Name    string
	Methods []MethodSpec
}

// Validate checks that method names are unique and that every parameter
// type tag is one this codec can carry. It panics on violation: an
// invalid InterfaceSpec is a programmer error, never a runtime condition
// a caller branches on.
func (s InterfaceSpec) Validate() {
	seen := make(map[string]bool, len(s.Methods))
	for _, m := range s.Methods {
		if seen[m.Name] {
			panic(fmt.Sprintf("rpcx: interface %q declares method %q more than once", s.Name, m.Name))
		}
		seen[m.Name] = true
		for _, t := range m.ParamTypes {
			if t > TagFailure {
				panic(fmt.Sprintf("rpcx: interface %q method %q declares unknown parameter type %v", s.Name, m.Name, t))
			}
		}
	}
}

// method looks up a MethodSpec by name, returning ok=false if absent.
func (s InterfaceSpec) method(name string) (MethodSpec, bool) {
	for _, m := range s.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return MethodSpec{}, false
}

// paramTypeTags renders a MethodSpec's parameter types as a raw byte
// slice for the wire's "parameter type descriptors" field.
func paramTypeTags(m MethodSpec) []byte {
	tags := make([]byte, len(m.ParamTypes))
	for i, t := range m.ParamTypes {
		tags[i] = byte(t)
	}
	return tags
}
