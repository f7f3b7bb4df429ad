//go:build !unix

package r

import "os/exec"

// killProcessGroup keeps the default cancellation, which kills the direct
// child only; WaitDelay still bounds the wait for its descendants
func killProcessGroup(_ *exec.Cmd) {}
