package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// loginResult is the output of the login command.
type loginResult struct {
	Username  string    `json:"username"`
	ExpiresIn string    `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
	Persisted bool      `json:"persisted"`
}

func (r loginResult) String() string {
	s := fmt.Sprintf("signed in as %s until %s", r.Username, r.ExpiresAt.Local().Format(time.RFC1123))
	if !r.Persisted {
		s += " (not saved: ORIGINGUARD_STATE_KEY is not set)"
	}
	return s
}

// NewLoginCommand creates the login command.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to the authority and store the credential",
		Long: `Sign in with the configured username and the password from
ORIGINGUARD_CLIENT_PASSWORD. The credential is stored encrypted in the
local state database when ORIGINGUARD_STATE_KEY is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, cmd)
		},
	}
}

func runLogin(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.cfg.Password == "" {
		return NewExitError(ExitCommandError, "no password: set ORIGINGUARD_CLIENT_PASSWORD")
	}

	token, err := s.Sync.Login(ctx)
	if err != nil {
		return err
	}

	return formatterFor(opts, cmd).Success(loginResult{
		Username:  s.cfg.Username,
		ExpiresIn: token.ExpiresIn,
		ExpiresAt: token.ExpiresAt,
		Persisted: s.cfg.StateKey != nil,
	})
}

// messageResult is a plain acknowledgement.
type messageResult struct {
	Message string `json:"message"`
}

func (r messageResult) String() string { return r.Message }

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Sync.Logout(ctx); err != nil {
				return err
			}
			return formatterFor(opts, cmd).Success(messageResult{Message: "signed out"})
		},
	}
}
