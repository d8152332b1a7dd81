// Package testing switches binaries into test mode when imported for side effects, so that
// main packages can be exercised without PostgreSQL or Redis.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

// Enable sets TURNKEY_TEST_MODE for the current process.
func Enable() {
	once.Do(func() {
		_ = os.Setenv("TURNKEY_TEST_MODE", "1")
	})
}

func init() {
	Enable()
}
