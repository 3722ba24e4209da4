// Package namingnode implements the naming node: a single stateful
// process that guards the namespace described by the specification's
// data model (files, directories, and the primary/replica/command maps
// tying file paths to the storage nodes that hold them).
package namingnode

import (
	"fmt"
	"sync"

	"github.com/roma2023/FileStack/internal/fspath"
	"github.com/roma2023/FileStack/internal/rpcx"
	"github.com/roma2023/FileStack/internal/storagenode"
	"github.com/roma2023/FileStack/pkg/filestack"
)

// Namespace holds all naming-node state behind one coarse mutex. A
// single lock is what the specification calls for (§4.3: "a single
// coarse mutex is sufficient and specified") and mirrors the teacher's
// pattern of one owning component guarding its own state directly
// rather than splitting it across lock-free pieces (internal/proxy's
// Client does the same for its socket-mount map).
type Namespace struct {
	mu sync.Mutex

	files       map[fspath.Path]struct{}
	directories map[fspath.Path]struct{}

	primary        map[fspath.Path]rpcx.Addr
	replicas       map[fspath.Path]map[rpcx.Addr]struct{}
	storageCommand map[rpcx.Addr]rpcx.Addr

	registered []rpcx.Addr // data addrs, in registration order, for createFile's random pick

	logger filestack.Logger
	// randIntN picks a uniform index in [0, n). Overridable in tests;
	// defaults to math/rand/v2's top-level source.
	randIntN func(n int) int
}

// New returns an empty Namespace containing only the root directory.
func New(logger filestack.Logger) *Namespace {
	return &Namespace{
		files:          make(map[fspath.Path]struct{}),
		directories:    map[fspath.Path]struct{}{fspath.Root: {}},
		primary:        make(map[fspath.Path]rpcx.Addr),
		replicas:       make(map[fspath.Path]map[rpcx.Addr]struct{}),
		storageCommand: make(map[rpcx.Addr]rpcx.Addr),
		logger:         logger,
		randIntN:       randIntN,
	}
}

// IsDirectory reports whether p is a known directory (true) or a known
// file (false); it fails with ErrNotFound for anything else.
func (ns *Namespace) IsDirectory(p fspath.Path) (bool, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if _, ok := ns.directories[p]; ok {
		return true, nil
	}
	if _, ok := ns.files[p]; ok {
		return false, nil
	}
	return false, ErrNotFound
}

// List returns the immediate-child names of directory p.
func (ns *Namespace) List(p fspath.Path) ([]string, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if _, ok := ns.directories[p]; !ok {
		return nil, ErrNotFound
	}
	var names []string
	for child := range ns.files {
		if name, ok := p.IsImmediateChild(child); ok {
			names = append(names, name)
		}
	}
	for child := range ns.directories {
		if name, ok := p.IsImmediateChild(child); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// GetStorage returns the data-plane address of p's primary storage.
func (ns *Namespace) GetStorage(p fspath.Path) (rpcx.Addr, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	addr, ok := ns.primary[p]
	if !ok {
		return rpcx.Addr{}, ErrNotFound
	}
	return addr, nil
}

// CreateDirectory adds p as a directory. It returns false, without
// error, if p is root or already exists as a file or directory.
func (ns *Namespace) CreateDirectory(p fspath.Path) (bool, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if p.IsRoot() {
		return false, nil
	}
	if _, ok := ns.files[p]; ok {
		return false, nil
	}
	if _, ok := ns.directories[p]; ok {
		return false, nil
	}
	if _, ok := ns.directories[p.Parent()]; !ok {
		return false, ErrNotFound
	}
	ns.directories[p] = struct{}{}
	return true, nil
}

// CreateFile picks one registered storage uniformly at random, asks it
// to create p, and on success records p as a new file primaried and
// replicated on that single storage. The specification's §9 corrects
// the original's loop-bug ("a random index and, due to a loop bug, may
// skip the creation entirely"): this always picks exactly one server
// and either creates on it or fails outright.
func (ns *Namespace) CreateFile(p fspath.Path) (bool, error) {
	ns.mu.Lock()
	if p.IsRoot() {
		ns.mu.Unlock()
		return false, nil
	}
	if _, ok := ns.files[p]; ok {
		ns.mu.Unlock()
		return false, nil
	}
	if _, ok := ns.directories[p]; ok {
		ns.mu.Unlock()
		return false, nil
	}
	if _, ok := ns.directories[p.Parent()]; !ok {
		ns.mu.Unlock()
		return false, ErrNotFound
	}
	if len(ns.registered) == 0 {
		ns.mu.Unlock()
		return false, ErrNotFound
	}
	dataAddr := ns.registered[ns.randIntN(len(ns.registered))]
	controlAddr, ok := ns.storageCommand[dataAddr]
	ns.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("namingnode: registered data addr %s has no control addr", dataAddr))
	}

	control := rpcx.NewProxy(storagenode.ControlServiceSpec, controlAddr)
	reply, err := control.Call("Create", p)
	if err != nil {
		return false, err
	}
	created, _ := reply.(bool)
	if !created {
		return false, nil
	}

	// p could have been claimed by a concurrent CreateFile/CreateDirectory
	// while the lock was released for the round trip above; re-check
	// before committing rather than overwriting whatever that winner
	// already recorded.
	ns.mu.Lock()
	_, fileExists := ns.files[p]
	_, dirExists := ns.directories[p]
	if !fileExists && !dirExists {
		ns.files[p] = struct{}{}
		ns.primary[p] = dataAddr
		ns.replicas[p] = map[rpcx.Addr]struct{}{dataAddr: {}}
	}
	ns.mu.Unlock()
	if fileExists || dirExists {
		// The file just created on dataAddr is orphaned by the race;
		// deleted best-effort rather than left to leak, since there is no
		// deregistration/reconciliation pass to catch it later.
		if _, err := control.Call("Delete", p); err != nil && ns.logger != nil {
			ns.logger.Errorf("namingnode: deleting orphaned create %s on %s: %v", p, controlAddr, err)
		}
		return false, nil
	}
	return true, nil
}

// Delete removes p from the namespace once every storage node holding
// it (or, for a directory, every storage node holding anything beneath
// it) confirms removal.
func (ns *Namespace) Delete(p fspath.Path) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}
	ns.mu.Lock()
	_, isFile := ns.files[p]
	_, isDir := ns.directories[p]
	ns.mu.Unlock()

	switch {
	case isFile:
		return ns.deleteFile(p)
	case isDir:
		return ns.deleteDirectory(p)
	default:
		return false, ErrNotFound
	}
}

func (ns *Namespace) deleteFile(p fspath.Path) (bool, error) {
	ns.mu.Lock()
	controlAddrSet := ns.controlAddrsForLocked(p)
	controlAddrs := make([]rpcx.Addr, 0, len(controlAddrSet))
	for a := range controlAddrSet {
		controlAddrs = append(controlAddrs, a)
	}
	ns.mu.Unlock()

	allOK := ns.deleteOnEachStorage(p, controlAddrs)
	if !allOK {
		return false, nil
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()
	delete(ns.files, p)
	delete(ns.primary, p)
	delete(ns.replicas, p)
	return true, nil
}

// deleteDirectory purges p and every descendant file AND directory
// entry from the namespace once every storage node owning a descendant
// file confirms removal. The original source purges only files beneath
// p, leaving stale directory entries behind; §9 of the specification
// calls that out explicitly as a defect this core corrects.
func (ns *Namespace) deleteDirectory(p fspath.Path) (bool, error) {
	ns.mu.Lock()
	var descendantFiles []fspath.Path
	addrSet := make(map[rpcx.Addr]struct{})
	for f := range ns.files {
		if p.StrictPrefixOf(f) {
			descendantFiles = append(descendantFiles, f)
			for addr := range ns.controlAddrsForLocked(f) {
				addrSet[addr] = struct{}{}
			}
		}
	}
	var descendantDirs []fspath.Path
	for d := range ns.directories {
		if p.StrictPrefixOf(d) {
			descendantDirs = append(descendantDirs, d)
		}
	}
	addrs := make([]rpcx.Addr, 0, len(addrSet))
	for addr := range addrSet {
		addrs = append(addrs, addr)
	}
	ns.mu.Unlock()

	allOK := ns.deleteOnEachStorage(p, addrs)
	if !allOK {
		return false, nil
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()
	for _, f := range descendantFiles {
		delete(ns.files, f)
		delete(ns.primary, f)
		delete(ns.replicas, f)
	}
	for _, d := range descendantDirs {
		delete(ns.directories, d)
	}
	delete(ns.directories, p)
	return true, nil
}

func (ns *Namespace) controlAddrsForLocked(p fspath.Path) map[rpcx.Addr]struct{} {
	out := make(map[rpcx.Addr]struct{})
	for dataAddr := range ns.replicas[p] {
		if ctrl, ok := ns.storageCommand[dataAddr]; ok {
			out[ctrl] = struct{}{}
		}
	}
	return out
}

// deleteOnEachStorage calls Delete(p) on every control address in
// addrs, logging and counting transport failures as an overall false
// rather than propagating them.
func (ns *Namespace) deleteOnEachStorage(p fspath.Path, addrs []rpcx.Addr) bool {
	allOK := true
	for _, addr := range addrs {
		control := rpcx.NewProxy(storagenode.ControlServiceSpec, addr)
		reply, err := control.Call("Delete", p)
		if err != nil {
			if ns.logger != nil {
				ns.logger.Errorf("namingnode: delete %s on %s: %v", p, addr, err)
			}
			allOK = false
			continue
		}
		if ok, _ := reply.(bool); !ok {
			allOK = false
		}
	}
	return allOK
}

// Register implements the registration interface: it adds every
// non-root path in paths that is not already known to the namespace,
// creating missing ancestor directories along the way, and returns the
// paths rejected as duplicates. It fails with ErrAlreadyRegistered if
// dataAddr is already known.
func (ns *Namespace) Register(dataAddr, controlAddr rpcx.Addr, paths []fspath.Path) ([]fspath.Path, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if _, ok := ns.storageCommand[dataAddr]; ok {
		return nil, ErrAlreadyRegistered
	}
	ns.storageCommand[dataAddr] = controlAddr
	ns.registered = append(ns.registered, dataAddr)

	var duplicates []fspath.Path
	for _, p := range paths {
		if p.IsRoot() {
			continue
		}
		if _, ok := ns.files[p]; ok {
			duplicates = append(duplicates, p)
			continue
		}
		if _, ok := ns.directories[p]; ok {
			duplicates = append(duplicates, p)
			continue
		}
		ns.ensureAncestorDirsLocked(p.Parent())
		ns.files[p] = struct{}{}
		ns.primary[p] = dataAddr
		ns.replicas[p] = map[rpcx.Addr]struct{}{dataAddr: {}}
	}
	return duplicates, nil
}

func (ns *Namespace) ensureAncestorDirsLocked(dir fspath.Path) {
	if dir.IsRoot() {
		return
	}
	if _, ok := ns.directories[dir]; ok {
		return
	}
	ns.ensureAncestorDirsLocked(dir.Parent())
	ns.directories[dir] = struct{}{}
}

// livenessSweep is an extension point for a future protocol that prunes
// dead storage references from the namespace; nothing in this core
// calls it. The specification explicitly defers deregistration as "a
// future extension, out of scope here" rather than inviting one built
// now.
func (ns *Namespace) livenessSweep(isAlive func(rpcx.Addr) bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	for _, addr := range ns.registered {
		if !isAlive(addr) {
			// Deliberately a no-op: removing a dead storage's entries
			// here would violate replicas[p] non-empty invariant for
			// any file whose only replica just died, and this core has
			// no replication-repair story to fall back to.
			continue
		}
	}
}
