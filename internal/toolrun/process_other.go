//go:build !unix

package toolrun

import "os/exec"

func isolateProcessGroup(cmd *exec.Cmd) {}
