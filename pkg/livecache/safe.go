package livecache

import (
	"fmt"
)

// runSafely executes fn and converts panics into returned errors tagged with scope.
// Sources run on background goroutines, so a panicking source must not crash the
// process.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
