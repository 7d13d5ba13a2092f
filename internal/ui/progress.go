package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinnerMu     sync.Mutex
	spinnerStop   chan struct{}
	spinnerDone   chan struct{}
)

// StartSpinner starts an animated spinner with a message. It does nothing
// if a spinner is already running or quiet mode is on.
//
// Parameters:
//   - message: The message to display next to the spinner
func StartSpinner(message string) {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if spinnerStop != nil || quietMode {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	spinnerStop, spinnerDone = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			frame := SpinnerStyle.Render(spinnerFrames[i%len(spinnerFrames)])
			fmt.Fprintf(Output, "\r%s %s", frame, message)

			select {
			case <-stop:
				// Clear the spinner line
				fmt.Fprintf(Output, "\r%s\r", strings.Repeat(" ", len(message)+4))
				return
			case <-ticker.C:
			}
		}
	}()
}

// StopSpinner stops the current spinner and waits until its line is
// cleared.
func StopSpinner() {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if spinnerStop == nil {
		return
	}

	close(spinnerStop)
	<-spinnerDone
	spinnerStop, spinnerDone = nil, nil
}
