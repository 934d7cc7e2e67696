//go:build !unix

package process

import "os/exec"

// setProcessGroup keeps the default cancellation, only the direct child is killed.
func setProcessGroup(cmd *exec.Cmd) {}
