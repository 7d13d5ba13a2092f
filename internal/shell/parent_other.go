//go:build !linux

package shell

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// parentExecutable asks ps for the command of pid. comm is the executable
// path on macOS and the BSDs.
func parentExecutable(pid int) (string, error) {
	out, err := exec.Command("ps", "-o", "comm=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return "", fmt.Errorf("ps: %w", err)
	}
	exe := strings.TrimSpace(string(out))
	if exe == "" {
		return "", fmt.Errorf("no process with pid %d", pid)
	}
	return exe, nil
}
