// Package auth provides profile management for the fp CLI.
//
// A profile holds a bearer token and the API endpoint it belongs to. Profiles
// are stored as YAML files under ~/.fp/profiles/<name>.yaml.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultProfile is used when no --profile flag or FP_PROFILE is given.
	DefaultProfile = "default"

	// TokenEnv overrides the stored token (for CI).
	TokenEnv = "FP_TOKEN"

	// ProfileEnv selects the profile when no --profile flag is given.
	ProfileEnv = "FP_PROFILE"
)

// ErrNotAuthenticated is returned when no token can be resolved.
var ErrNotAuthenticated = errors.New("not authenticated: run 'fp auth login' or pass --token")

var validProfileName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Profile represents one stored set of credentials.
type Profile struct {
	// Name is the profile name (derived from the file name, not stored).
	Name string `yaml:"-"`

	// Token is the bearer token for the API.
	Token string `yaml:"token"`

	// BaseURL is the API endpoint this token belongs to (optional).
	BaseURL string `yaml:"base_url,omitempty"`
}

// Manager handles profile storage and retrieval.
type Manager struct {
	// configDir is the directory holding the profiles/ directory.
	configDir string
}

// NewManager creates a new profile manager.
//
// Returns:
//   - *Manager: A new manager instance using ~/.fp as the config directory
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return &Manager{
		configDir: filepath.Join(homeDir, ".fp"),
	}
}

// NewManagerWithDir creates a new profile manager with a custom directory.
//
// Parameters:
//   - configDir: The directory to store profiles in
//
// Returns:
//   - *Manager: A new manager instance
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir: configDir,
	}
}

// ProfileName resolves the active profile name from the flag value and FP_PROFILE.
func ProfileName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(ProfileEnv); env != "" {
		return env
	}
	return DefaultProfile
}

// profilePath returns the path to a profile file.
func (m *Manager) profilePath(name string) (string, error) {
	if !validProfileName.MatchString(name) {
		return "", fmt.Errorf("invalid profile name %q", name)
	}
	return filepath.Join(m.configDir, "profiles", name+".yaml"), nil
}

// LoadProfile reads a stored profile.
//
// Parameters:
//   - name: The profile name
//
// Returns:
//   - *Profile: The stored profile, or nil if it does not exist
//   - error: Any error that occurred during retrieval
func (m *Manager) LoadProfile(name string) (*Profile, error) {
	path, err := m.profilePath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	profile.Name = name

	return &profile, nil
}

// SaveProfile stores a profile to disk.
//
// Parameters:
//   - profile: The profile to store; its Name selects the file
//
// Returns:
//   - error: Any error that occurred during storage
func (m *Manager) SaveProfile(profile *Profile) error {
	path, err := m.profilePath(profile.Name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	data, err := yaml.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}

	return nil
}

// ClearProfile removes a stored profile.
//
// Parameters:
//   - name: The profile name
//
// Returns:
//   - error: Any error that occurred during removal
func (m *Manager) ClearProfile(name string) error {
	path, err := m.profilePath(name)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove profile: %w", err)
	}
	return nil
}

// Resolve combines the stored profile with flag and environment overrides.
// The token precedence is flag, FP_TOKEN, then the profile file.
//
// Parameters:
//   - name: The profile name
//   - tokenFlag: The value of --token (may be empty)
//
// Returns:
//   - *Profile: The effective profile (BaseURL may be empty)
//   - error: ErrNotAuthenticated when no token is available
func (m *Manager) Resolve(name, tokenFlag string) (*Profile, error) {
	profile, err := m.LoadProfile(name)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &Profile{Name: name}
	}

	switch {
	case tokenFlag != "":
		profile.Token = tokenFlag
	case os.Getenv(TokenEnv) != "":
		profile.Token = os.Getenv(TokenEnv)
	}

	if profile.Token == "" {
		return nil, ErrNotAuthenticated
	}
	return profile, nil
}
