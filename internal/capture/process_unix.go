//go:build !windows

package capture

import (
	"os"
	"syscall"
)

// interruptProcess asks the process to stop the way Ctrl-C would.
func interruptProcess(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Signal(syscall.SIGINT)
}
