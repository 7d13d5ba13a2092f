package shell

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

const (
	// SessionEnv is set in the recorded shell's environment.
	SessionEnv = "__FP_SHELL_SESSION"

	// NotebookIDEnv carries the target notebook into the recorded shell.
	NotebookIDEnv = "NOTEBOOK_ID"
)

// ErrNestedSession is returned when recording is started from inside a
// recorded shell.
var ErrNestedSession = errors.New("Can't start recording inside an existing recording session")

// CheckNotNested fails when the current process runs inside a recording.
func CheckNotNested() error {
	if _, ok := os.LookupEnv(SessionEnv); ok {
		return ErrNestedSession
	}
	return nil
}

// posixInit rewrites PS1 to wrap the prompt in the start and end markers.
// printf takes octal escapes so dash's builtin understands them too.
const posixInit = `export PS1="$(printf '\342\200\213\342\200\213')${PS1}$(printf '\342\200\216\342\200\216')"`

// bashForgetInit removes the init line from bash's history.
const bashForgetInit = `;history -d "$(history 1 | awk '{print $1}')"`

// powerShellPrompt wraps the existing prompt function in a closure that
// prints the markers around it.
const powerShellPrompt = `$function:prompt = & { $__last_prompt = $function:prompt; $BP = [char]::ConvertFromUtf32(0x200B); $EP = [char]::ConvertFromUtf32(0x200E); { Write-Host "$BP$BP" -NoNewline; &$script:__last_prompt; return "$EP$EP" }.GetNewClosure() }`

// Launcher builds the command line of the recorded shell.
type Launcher struct {
	Type       Type
	Path       string
	NotebookID string
	Dir        string
}

// NewLauncher detects the parent shell and prepares a launcher for it.
//
// Parameters:
//   - notebookID: The notebook the session records into
//
// Returns:
//   - *Launcher: The launcher
//   - error: If the parent shell can't be detected or the cwd can't be read
func NewLauncher(notebookID string) (*Launcher, error) {
	kind, path, err := Detect()
	if err != nil {
		return nil, err
	}
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return &Launcher{Type: kind, Path: path, NotebookID: notebookID, Dir: dir}, nil
}

// Command returns the child process descriptor. It is not started.
func (l *Launcher) Command() (*exec.Cmd, error) {
	var args []string
	switch l.Type {
	case Bash, Sh, Zsh:
	case PowerShell:
		args = []string{"-NoExit", "-Interactive", "-Command", powerShellPrompt}
	default:
		// cmd.exe has no prompt hook we can wrap.
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedShell, l.Type)
	}

	cmd := exec.Command(l.Path, args...)
	cmd.Dir = l.Dir
	cmd.Env = append(os.Environ(),
		NotebookIDEnv+"="+l.NotebookID,
		SessionEnv+"=1",
	)
	return cmd, nil
}

// InitLine returns the bytes written to the shell's stdin once the PTY is
// live, or nil when the prompt was installed through the command line.
func (l *Launcher) InitLine() []byte {
	switch l.Type {
	case Bash:
		return []byte(posixInit + bashForgetInit + "\n")
	case Sh, Zsh:
		return []byte(posixInit + "\n")
	default:
		return nil
	}
}
