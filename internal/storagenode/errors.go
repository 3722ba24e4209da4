package storagenode

import "errors"

// Sentinel errors matching the not-found/bounds/I-O taxonomy. Handler
// wiring (see service.go) maps these onto rpcx's remote-failure Kind;
// any other error returned by a Node method is treated as I/O.
var (
	ErrNotFound = errors.New("storagenode: path not found")
	ErrBounds   = errors.New("storagenode: offset/length out of bounds")
)
