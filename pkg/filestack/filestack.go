// Package filestack holds the small set of types shared by every other
// package in the module: the logging interface every node and transport
// component is built against, and the well-known ports a naming node
// binds so storage nodes and clients can construct bootstrap proxies
// without discovery.
package filestack

// Logger is the interface used throughout the project for logging. It is
// implemented by internal/flog and may be satisfied by a caller-supplied
// logger when this module is embedded elsewhere.
type Logger interface {
	// Debugf reports additional information about internal operations.
	Debugf(format string, args ...interface{})
	// Infof reports informational messages.
	Infof(format string, args ...interface{})
	// Errorf reports errors.
	Errorf(format string, args ...interface{})
}

const (
	// DefaultClientPort is the loopback port the naming node binds for its
	// client-facing metadata interface (isDirectory, list, createFile,
	// createDirectory, delete, getStorage).
	DefaultClientPort = 8765

	// DefaultRegistrationPort is the loopback port the naming node binds
	// for storage-node registration.
	DefaultRegistrationPort = 8766
)
