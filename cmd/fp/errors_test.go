package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: 0},
		{name: "plain error", err: errors.New("boom"), want: 1},
		{name: "usage error", err: newUsageError("missing command to run"), want: 2},
		{name: "wrapped usage error", err: fmt.Errorf("run: %w", newUsageError("bad")), want: 2},
		{name: "unknown command", err: errors.New(`unknown command "nope" for "fp"`), want: 2},
		{name: "arg count", err: errors.New(`accepts 0 arg(s), received 1`), want: 2},
		{name: "interrupted", err: errInterrupted, want: 130},
		{name: "cancelled", err: fmt.Errorf("fetch notebook: %w", context.Canceled), want: 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
