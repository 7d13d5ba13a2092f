package auth

// This file implements the browser login. The CLI listens on a random local
// port, opens the identity provider's page with that port as the redirect
// target, and waits for the API to send the browser back with a token.

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fiberplane/fp-sub000/internal/ui"
)

// DefaultLoginTimeout is the maximum time to wait for the browser login.
const DefaultLoginTimeout = 5 * time.Minute

// BrowserLoginConfig configures a browser login.
type BrowserLoginConfig struct {
	// BaseURL is the API base URL (e.g. https://studio.fiberplane.com).
	BaseURL string

	// Timeout defaults to DefaultLoginTimeout.
	Timeout time.Duration

	// Open shows the login page to the user. Defaults to ui.OpenBrowser.
	Open func(url string) error
}

// BrowserLogin runs the redirect-based login flow.
type BrowserLogin struct {
	config BrowserLoginConfig
}

// NewBrowserLogin creates a browser login handler.
//
// Parameters:
//   - config: Configuration for the login flow
//
// Returns:
//   - *BrowserLogin: A new login handler
func NewBrowserLogin(config BrowserLoginConfig) *BrowserLogin {
	if config.Timeout == 0 {
		config.Timeout = DefaultLoginTimeout
	}
	if config.Open == nil {
		config.Open = ui.OpenBrowser
	}
	return &BrowserLogin{config: config}
}

// LoginURL returns the page that starts the login for a redirect port.
func (b *BrowserLogin) LoginURL(port int) (string, error) {
	u, err := url.Parse(b.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = "/api/oidc/authorize/google"
	u.RawQuery = url.Values{"cli_redirect_port": {strconv.Itoa(port)}}.Encode()
	return u.String(), nil
}

// Login opens the browser and waits for the token.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - string: The bearer token
//   - error: If the flow fails, times out or is cancelled
func (b *BrowserLogin) Login(ctx context.Context) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to find available port: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	server := &callbackServer{
		listener: listener,
		tokenCh:  make(chan string, 1),
		errCh:    make(chan error, 2),
	}
	server.Start()
	defer server.Stop()

	loginURL, err := b.LoginURL(port)
	if err != nil {
		return "", err
	}
	log.Debug("Opening login page", "url", loginURL)
	if err := b.config.Open(loginURL); err != nil {
		return "", fmt.Errorf("failed to open browser: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	select {
	case token := <-server.tokenCh:
		return token, nil
	case err := <-server.errCh:
		return "", err
	case <-timeoutCtx.Done():
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("login timed out after %v", b.config.Timeout)
		}
		return "", timeoutCtx.Err()
	}
}

// callbackServer receives the redirect carrying the token.
type callbackServer struct {
	listener net.Listener
	tokenCh  chan string
	errCh    chan error
	server   *http.Server
	wg       sync.WaitGroup
	once     sync.Once
}

// Start serves the callback on the pre-bound listener.
func (s *callbackServer) Start() {
	s.server = &http.Server{
		Handler:           http.HandlerFunc(s.handleCallback),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- fmt.Errorf("callback server: %w", err)
		}
	}()
}

// Stop shuts the server down.
func (s *callbackServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
	s.wg.Wait()
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if msg := query.Get("error"); msg != "" {
		writePage(w, http.StatusBadRequest, "Login failed", msg)
		s.fail(fmt.Errorf("login failed: %s", msg))
		return
	}

	token := query.Get("token")
	if token == "" {
		writePage(w, http.StatusBadRequest, "Login failed", "The redirect did not include a token.")
		s.fail(errors.New("login failed: missing token"))
		return
	}

	writePage(w, http.StatusOK, "Logged in", "You can close this window and return to your terminal.")
	s.once.Do(func() { s.tokenCh <- token })
}

func (s *callbackServer) fail(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

// writePage renders a minimal status page. The message is escaped.
func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>fp - %[1]s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0; background: #0a0a0a; }
        .container { background: #111; border: 1px solid rgba(75, 91, 255, 0.3); padding: 48px 56px; text-align: center; max-width: 400px; }
        h1 { color: #fff; font-size: 20px; margin: 0 0 8px; font-weight: 600; }
        p { color: #888; margin: 0; font-size: 14px; line-height: 1.5; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%[1]s</h1>
        <p>%[2]s</p>
    </div>
</body>
</html>`, html.EscapeString(title), html.EscapeString(message))
}
