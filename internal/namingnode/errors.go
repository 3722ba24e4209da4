package namingnode

import "errors"

// Sentinel errors matching the not-found/already-registered slice of
// the taxonomy relevant to namingnode; bounds and I/O kinds originate on
// storage nodes and pass through unchanged.
var (
	ErrNotFound          = errors.New("namingnode: path not found")
	ErrAlreadyRegistered = errors.New("namingnode: data proxy already registered")
)
