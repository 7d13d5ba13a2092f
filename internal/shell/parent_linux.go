//go:build linux

package shell

import (
	"fmt"
	"os"
)

func parentExecutable(pid int) (string, error) {
	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return "", err
	}
	return exe, nil
}
