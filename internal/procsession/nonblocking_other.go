//go:build !unix

package procsession

import "os"

// nonBlockingRead is the non-Unix fallback: a zero-byte read that never
// blocks (§4.C: "on other platforms a zero-byte read is the fallback"). Poll
// therefore collects no pipe output into the session's buffer on these
// platforms.
func nonBlockingRead(f *os.File, buf []byte) (int, error) {
	return 0, nil
}
