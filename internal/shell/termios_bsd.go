//go:build darwin || freebsd || netbsd || openbsd

package shell

import "golang.org/x/sys/unix"

const ioctlReadTermios = unix.TIOCGETA
