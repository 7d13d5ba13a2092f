package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/fiberplane/fp-sub000/internal/api"
	"github.com/fiberplane/fp-sub000/internal/auth"
	"github.com/fiberplane/fp-sub000/internal/config"
	"github.com/fiberplane/fp-sub000/internal/ui"
)

// validateTimeout bounds the profile request used to check a token.
const validateTimeout = 30 * time.Second

// authCmd is the parent command for authentication operations.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long: `Manage authentication with Fiberplane.

COMMANDS:
  login   - Log in through the browser or with a token
  logout  - Remove stored credentials
  status  - Show current authentication status

CREDENTIALS:
  Profiles are stored in ~/.fp/profiles/<name>.yaml
  FP_TOKEN overrides the stored token, FP_PROFILE selects the profile.`,
}

// authLoginCmd handles user authentication.
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Fiberplane",
	Long: `Authenticate with Fiberplane.

By default a browser window opens to sign in. Pass --token to store an API
token instead, or --paste to be prompted for one.

EXAMPLES:
  fp auth login
  fp auth login --paste
  fp auth login --token "$FP_TOKEN" --profile ci`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

// authLogoutCmd removes stored credentials.
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := readGlobalFlags(cmd)
		name := auth.ProfileName(flags.profile)

		if err := newProfileManager().ClearProfile(name); err != nil {
			return err
		}
		ui.PrintSuccess("Logged out of profile %s", name)
		return nil
	},
}

// authStatusCmd shows who the active profile belongs to.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current authentication status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := readGlobalFlags(cmd)
		name := auth.ProfileName(flags.profile)

		client, err := newAPIClient(cmd)
		if err != nil {
			if errors.Is(err, auth.ErrNotAuthenticated) {
				ui.PrintWarning("Not authenticated (profile %s)", name)
				ui.PrintInfo("Run 'fp auth login' to authenticate")
				return nil
			}
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), validateTimeout)
		defer cancel()
		profile, err := client.GetProfile(ctx)
		if err != nil {
			return describeAuthError(err)
		}

		table := ui.NewTable("KEY", "VALUE")
		table.AddRow("Profile", name)
		table.AddRow("User", profile.Name)
		if profile.Email != "" {
			table.AddRow("Email", profile.Email)
		}
		table.AddRow("API", client.BaseURL())
		table.Render()
		return nil
	},
}

func init() {
	authLoginCmd.Flags().Bool("paste", false, "Prompt for a token instead of opening the browser")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	flags := readGlobalFlags(cmd)
	name := auth.ProfileName(flags.profile)
	mgr := newProfileManager()

	existing, err := mgr.LoadProfile(name)
	if err != nil {
		return err
	}
	profileBaseURL := ""
	if existing != nil {
		profileBaseURL = existing.BaseURL
	}
	baseURL := config.ResolveBaseURL(flags.baseURL, profileBaseURL)

	token := flags.token
	if token == "" {
		paste, _ := cmd.Flags().GetBool("paste")
		token, err = obtainToken(cmd.Context(), baseURL, paste)
		if err != nil {
			return err
		}
	}
	if token == "" {
		return newUsageError("token cannot be empty")
	}

	ui.StartSpinner("Validating token...")
	ctx, cancel := context.WithTimeout(cmd.Context(), validateTimeout)
	defer cancel()
	user, err := api.NewClientWithBaseURL(token, baseURL).GetProfile(ctx)
	ui.StopSpinner()
	if err != nil {
		return describeAuthError(err)
	}

	profile := &auth.Profile{Name: name, Token: token}
	if baseURL != config.DefaultBaseURL {
		profile.BaseURL = baseURL
	}
	if err := mgr.SaveProfile(profile); err != nil {
		return err
	}

	ui.PrintSuccess("Logged in as %s", user.Name)
	ui.PrintDim("Saved profile %s", name)
	return nil
}

// obtainToken asks for a token interactively.
func obtainToken(ctx context.Context, baseURL string, paste bool) (string, error) {
	if paste || !isInteractive() {
		return ui.PromptSecret("Paste your API token:")
	}

	ui.PrintInfo("Opening the browser to log in...")
	login := auth.NewBrowserLogin(auth.BrowserLoginConfig{BaseURL: baseURL})
	token, err := login.Login(ctx)
	if err != nil {
		return "", fmt.Errorf("browser login: %w", err)
	}
	return token, nil
}

// describeAuthError turns a 401 into a hint to log in again.
func describeAuthError(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("the token was rejected; run 'fp auth login' again: %w", err)
	}
	return fmt.Errorf("failed to validate token: %w", err)
}
