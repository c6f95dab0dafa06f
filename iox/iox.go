// Package iox holds small I/O cleanup helpers.
package iox

import "io"

// DiscardClose closes c, ignoring the error. Meant for defers on handles
// whose close failure has no recovery path:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc wraps c.Close for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(f))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}
