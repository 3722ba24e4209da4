package storagenode

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roma2023/FileStack/internal/fspath"
	"github.com/roma2023/FileStack/internal/rpcx"
)

// RegistrationServiceSpec is the naming node's registration interface as
// seen from a storage node: one method taking this node's two bound
// addresses and the set of file paths it holds, returning the subset
// the naming node already knew about.
var RegistrationServiceSpec = rpcx.InterfaceSpec{
	Name: "RegistrationService",
	Methods: []rpcx.MethodSpec{
		{Name: "Register", ParamTypes: []rpcx.Tag{rpcx.TagAddr, rpcx.TagAddr, rpcx.TagArray}},
	},
}

// Register implements the storage node's startup sequence (steps 3-6):
// it walks the root collecting file paths, registers them with the
// naming node at registration, deletes any path the naming node reports
// as a pre-existing duplicate, and prunes directories left empty by
// those deletions.
func (n *Node) Register(registration *rpcx.Proxy, dataAddr, controlAddr rpcx.Addr) error {
	n.mu.Lock()
	paths, err := n.collectFilePathsLocked()
	n.mu.Unlock()
	if err != nil {
		return err
	}

	argPaths := make([]interface{}, len(paths))
	for i, p := range paths {
		argPaths[i] = p
	}
	reply, err := registration.Call("Register", dataAddr, controlAddr, argPaths)
	if err != nil {
		return err
	}
	duplicates, _ := reply.([]interface{})

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, d := range duplicates {
		dp, ok := d.(fspath.Path)
		if !ok {
			continue
		}
		if _, err := n.deleteLocked(dp); err != nil && n.logger != nil {
			n.logger.Errorf("storagenode: deleting duplicate %s reported by registration: %v", dp, err)
		}
	}
	n.pruneEmptyDirsLocked()
	return nil
}

// collectFilePathsLocked walks the root and returns every regular
// file's path, relative to the root, omitting directories.
func (n *Node) collectFilePathsLocked() ([]fspath.Path, error) {
	var paths []fspath.Path
	err := filepath.WalkDir(n.root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(n.root, name)
		if err != nil {
			return err
		}
		components := splitRelPath(rel)
		paths = append(paths, fspath.New(components...))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storagenode: walking root: %w", err)
	}
	return paths, nil
}

func splitRelPath(rel string) []string {
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return nil
	}
	return strings.Split(rel, "/")
}

// pruneEmptyDirsLocked recursively removes any directory under the root
// that is empty after accounting for removals already applied, in
// post-order.
func (n *Node) pruneEmptyDirsLocked() {
	for {
		removed, err := n.pruneEmptyDirsPass(n.root)
		if err != nil && n.logger != nil {
			n.logger.Errorf("storagenode: pruning empty directories: %v", err)
			return
		}
		if !removed {
			return
		}
	}
}

// pruneEmptyDirsPass runs one post-order sweep, removing every empty
// directory strictly below the root, and reports whether it removed
// anything (a second pass catches directories left empty by the first).
func (n *Node) pruneEmptyDirsPass(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	removedAny := false
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		child := filepath.Join(dir, e.Name())
		if _, err := n.pruneEmptyDirsPass(child); err != nil {
			return removedAny, err
		}
		childEntries, err := os.ReadDir(child)
		if err != nil {
			return removedAny, err
		}
		if len(childEntries) == 0 {
			if err := os.Remove(child); err != nil {
				return removedAny, err
			}
			removedAny = true
		}
	}
	return removedAny, nil
}
