// Package shell records an interactive shell session into a notebook.
//
// The pipeline is:
//
//	child shell -> PTY master -> Extractor -> TerminalRenderer -> user's terminal
//	                                      \-> TextRenderer -> NotebookWriter -> realtime client
//
// The launcher installs invisible prompt markers in the shell's prompt so the
// extractor can find prompt boundaries with a plain byte search.
package shell

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Type identifies a supported shell.
type Type string

const (
	Bash       Type = "bash"
	Sh         Type = "sh"
	Zsh        Type = "zsh"
	PowerShell Type = "pwsh"
	Cmd        Type = "cmd"
)

// ErrUnsupportedShell is returned for shells the recorder cannot drive.
var ErrUnsupportedShell = errors.New("unsupported shell")

// ParseType maps an executable path to a shell type using its lower-cased
// file stem. Login shells reported as "-bash" are accepted.
func ParseType(exe string) (Type, error) {
	base := filepath.Base(strings.ReplaceAll(exe, `\`, "/"))
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	stem = strings.TrimPrefix(stem, "-")

	switch stem {
	case "bash":
		return Bash, nil
	case "sh":
		return Sh, nil
	case "zsh":
		return Zsh, nil
	case "pwsh", "powershell":
		return PowerShell, nil
	case "cmd":
		return Cmd, nil
	case "", ".":
		return "", errors.New("must be launched from a shell parent")
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedShell, stem)
	}
}

// Detect returns the type and executable path of the shell that launched the
// current process. $SHELL is not consulted: it names the login shell, not the
// one currently running.
func Detect() (Type, string, error) {
	exe, err := parentExecutable(os.Getppid())
	if err != nil {
		return "", "", fmt.Errorf("detect parent shell: %w", err)
	}
	kind, err := ParseType(exe)
	if err != nil {
		return "", "", err
	}
	return kind, exe, nil
}
