//go:build windows

package capture

import "os"

// interruptProcess terminates the process. Windows has no SIGINT to deliver
// to a single process, so WaitDelay's grace period does not apply here.
func interruptProcess(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}
