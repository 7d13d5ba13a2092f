// Package main provides sanity tests for the fp CLI command initialization.
package main

import (
	"testing"
)

// TestRootCommandInitialization verifies that the root command exists and has all expected subcommands.
func TestRootCommandInitialization(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	expectedCommands := []string{"version", "auth", "shell", "run"}

	for _, name := range expectedCommands {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %q not found", name)
		}
	}
}

// TestGlobalFlagsExist verifies that all expected global flags are registered on the root command.
func TestGlobalFlagsExist(t *testing.T) {
	flags := []string{"debug", "quiet", "log-file", "trace-file", "base-url", "profile", "token"}

	for _, name := range flags {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected global flag %q not found", name)
		}
	}
}

// TestRunFlagsExist verifies the run command's flags and their defaults.
func TestRunFlagsExist(t *testing.T) {
	for _, name := range []string{"notebook-id", "workspace-id", "output", "copy-url"} {
		if runCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected run flag %q not found", name)
		}
	}
	if got := runCmd.Flags().Lookup("output").DefValue; got != "command" {
		t.Errorf("expected --output to default to command, got %q", got)
	}
	if shellCmd.Flags().Lookup("notebook-id") == nil {
		t.Errorf("expected shell flag notebook-id not found")
	}
}

// TestRootCommandHasUse verifies the root command has the correct Use field.
func TestRootCommandHasUse(t *testing.T) {
	if rootCmd.Use != "fp" {
		t.Errorf("expected root command Use to be 'fp', got %q", rootCmd.Use)
	}
}
