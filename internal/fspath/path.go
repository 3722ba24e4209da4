// Package fspath implements the immutable path type shared by the naming
// node, the storage node, and the RPC transport's wire codec.
package fspath

import "strings"

// Path is an immutable, ordered sequence of non-empty path components. The
// zero value is not a valid Path; use Root or Parse to construct one.
//
// Path wraps a single canonical string so it stays comparable: it can be
// used directly as a map key (map[Path]T) and with ==, which is how
// namingnode.Namespace stores its files/directories sets.
type Path struct {
	rendered string
}

// Root is the zero-component path, rendered "/". It is always a directory
// and is never deletable.
var Root = Path{rendered: "/"}

// New builds a Path from a literal slice of already-validated components,
// typically used internally when re-deriving a path (Parent, a child
// lookup) from data already known to be well-formed. Callers constructing
// a Path from untrusted input should use Parse instead.
func New(components ...string) Path {
	for _, c := range components {
		validateComponent(c)
	}
	if len(components) == 0 {
		return Root
	}
	return Path{rendered: "/" + strings.Join(components, "/")}
}

// Parse renders s into a Path. s must either be exactly "/" (the root) or
// begin with "/" and contain no empty or otherwise malformed components.
// Parse panics on malformed input: per the specification, a bad path is a
// programmer error, not a recoverable condition a caller is expected to
// branch on.
func Parse(s string) Path {
	if s == "/" {
		return Root
	}
	if !strings.HasPrefix(s, "/") {
		panic("fspath: path must start with \"/\": " + s)
	}
	if strings.HasSuffix(s, "/") {
		panic("fspath: path must not end with \"/\": " + s)
	}
	for _, c := range strings.Split(s[1:], "/") {
		validateComponent(c)
	}
	return Path{rendered: s}
}

func validateComponent(c string) {
	if c == "" {
		panic("fspath: path component must not be empty")
	}
	if strings.ContainsAny(c, "/:") {
		panic("fspath: path component must not contain '/' or ':': " + c)
	}
	if c == "." || c == ".." {
		panic("fspath: path component must not be '.' or '..': " + c)
	}
}

// IsRoot reports whether p is the root path.
func (p Path) IsRoot() bool {
	return p.rendered == "" || p.rendered == "/"
}

// Len returns the number of components in p.
func (p Path) Len() int {
	if p.IsRoot() {
		return 0
	}
	return strings.Count(p.rendered, "/")
}

// Components returns p's components in order.
func (p Path) Components() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(p.rendered[1:], "/")
}

// String renders p as "/" for the root or "/" + components joined by "/".
func (p Path) String() string {
	if p.rendered == "" {
		return "/"
	}
	return p.rendered
}

// Last returns p's final component. It panics if p is the root, which has
// no last component.
func (p Path) Last() string {
	if p.IsRoot() {
		panic("fspath: root path has no last component")
	}
	i := strings.LastIndexByte(p.rendered, '/')
	return p.rendered[i+1:]
}

// Parent returns p's parent path. It panics if p is the root, which has no
// parent.
func (p Path) Parent() Path {
	if p.IsRoot() {
		panic("fspath: root path has no parent")
	}
	i := strings.LastIndexByte(p.rendered, '/')
	if i == 0 {
		return Root
	}
	return Path{rendered: p.rendered[:i]}
}

// Child returns the path formed by appending name as a new final
// component of p.
func (p Path) Child(name string) Path {
	validateComponent(name)
	if p.IsRoot() {
		return Path{rendered: "/" + name}
	}
	return Path{rendered: p.rendered + "/" + name}
}

// Equal reports whether p and other denote the same path.
func (p Path) Equal(other Path) bool {
	return p.String() == other.String()
}

// StrictPrefixOf reports whether p is a strict (proper) prefix of other:
// p's component sequence is an initial segment of other's and is shorter
// than it. Equal paths are NOT strict prefixes of each other.
func (p Path) StrictPrefixOf(other Path) bool {
	if p.Equal(other) {
		return false
	}
	if p.IsRoot() {
		return !other.IsRoot()
	}
	ps, os := p.String(), other.String()
	return strings.HasPrefix(os, ps+"/")
}

// IsImmediateChild reports whether other is exactly one component below p,
// returning that component's name when true.
func (p Path) IsImmediateChild(other Path) (name string, ok bool) {
	if !p.StrictPrefixOf(other) {
		return "", false
	}
	rest := other.String()[len(p.String()):]
	rest = strings.TrimPrefix(rest, "/")
	if strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
