//go:build !unix

package toolkit

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
