package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Input is where prompts read answers from.
var Input io.Reader = os.Stdin

// Prompt displays a prompt and reads one line of input.
//
// Parameters:
//   - message: The prompt message to display
//
// Returns:
//   - string: The user's input, trimmed
//   - error: Any error that occurred
func Prompt(message string) (string, error) {
	fmt.Fprintf(Output, "%s ", InfoStyle.Render(message))

	reader := bufio.NewReader(Input)
	input, err := reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || input == "") {
		return "", err
	}

	return strings.TrimSpace(input), nil
}

// PromptSecret reads a line without echoing it when Input is a terminal.
//
// Parameters:
//   - message: The prompt message to display
//
// Returns:
//   - string: The user's input, trimmed
//   - error: Any error that occurred
func PromptSecret(message string) (string, error) {
	f, ok := Input.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return Prompt(message)
	}

	fmt.Fprintf(Output, "%s ", InfoStyle.Render(message))
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(Output)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

// PromptConfirm displays a yes/no confirmation prompt.
//
// Parameters:
//   - message: The prompt message to display
//   - defaultYes: Whether the default is yes (true) or no (false)
//
// Returns:
//   - bool: True if user confirmed, false otherwise
//   - error: Any error that occurred
func PromptConfirm(message string, defaultYes bool) (bool, error) {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	input, err := Prompt(fmt.Sprintf("%s %s", message, suffix))
	if err != nil {
		return false, err
	}

	input = strings.ToLower(input)
	if input == "" {
		return defaultYes, nil
	}
	return input == "y" || input == "yes", nil
}
