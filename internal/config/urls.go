// Package config provides URL configuration for the fp CLI.
//
// This package resolves the API base URL and derives the realtime
// WebSocket endpoint and the notebook links printed to the user.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

const (
	// DefaultBaseURL is the production API URL.
	DefaultBaseURL = "https://studio.fiberplane.com"

	// BaseURLEnv overrides the base URL when no flag is given.
	BaseURLEnv = "FP_BASE_URL"

	// websocketPath is the realtime endpoint path.
	websocketPath = "/api/ws"
)

// ResolveBaseURL picks the base URL by precedence: flag, environment,
// profile, built-in default.
//
// Parameters:
//   - flagValue: The value of --base-url (may be empty)
//   - profileValue: The base URL stored in the active profile (may be empty)
//
// Returns:
//   - string: The base URL without a trailing slash
func ResolveBaseURL(flagValue, profileValue string) string {
	for _, candidate := range []string{flagValue, os.Getenv(BaseURLEnv), profileValue} {
		if candidate != "" {
			return strings.TrimRight(candidate, "/")
		}
	}
	return DefaultBaseURL
}

// WebSocketURL derives the realtime endpoint from the API base URL.
// http becomes ws, https becomes wss, and the path is replaced with /api/ws.
//
// Parameters:
//   - baseURL: The API base URL
//
// Returns:
//   - string: The WebSocket URL
//   - error: If the base URL cannot be parsed
func WebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid base URL %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	u.Path = websocketPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// NotebookURL builds the browser link to a notebook, optionally anchored at a cell.
//
// Parameters:
//   - baseURL: The API base URL
//   - notebookID: The notebook identifier
//   - cellID: The cell to link to (may be empty)
//
// Returns:
//   - string: The notebook URL
func NotebookURL(baseURL, notebookID, cellID string) string {
	link := strings.TrimRight(baseURL, "/") + "/notebook/" + url.PathEscape(notebookID)
	if cellID != "" {
		link += "#" + cellID
	}
	return link
}
