package namingnode

import "math/rand/v2"

// randIntN picks a uniform index in [0, n) using the package-level
// math/rand/v2 source. CreateFile routes its storage pick through
// Namespace.randIntN instead of calling this directly, so tests can
// substitute a deterministic source.
func randIntN(n int) int {
	return rand.IntN(n)
}
