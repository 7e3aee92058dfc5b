package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/originguard/internal/application"
	"github.com/ericfisherdev/originguard/internal/domain/model"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	TLSError bool
	Allow    bool
	Decline  bool
}

// checkResult is the output of a navigation check.
type checkResult struct {
	Target  string `json:"target"`
	Host    string `json:"host,omitempty"`
	Tier    string `json:"tier"`
	State   string `json:"state"`
	Verdict string `json:"verdict"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r checkResult) String() string {
	s := fmt.Sprintf("%s: %s (tier %s)", r.Target, r.Verdict, r.Tier)
	if r.Message != "" {
		s += "\n" + r.Message
	}
	return s
}

// tlsResult is the output of a certificate failure check.
type tlsResult struct {
	Target  string `json:"target"`
	Host    string `json:"host,omitempty"`
	Tier    string `json:"tier"`
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}

func (r tlsResult) String() string {
	s := fmt.Sprintf("%s: %s on certificate error (tier %s)", r.Target, r.Action, r.Tier)
	if r.Message != "" {
		s += "\n" + r.Message
	}
	return s
}

// NewCheckCommand creates the check command.
func NewCheckCommand(opts *RootOptions) *cobra.Command {
	checkOpts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Check a navigation against the allow-list and security tier",
		Long: `Run a navigation through the policy engine and print the decision.
A navigation to an origin that is not on the allow-list needs a user decision;
--allow or --decline supplies it. With --tls-error the command instead reports
what happens when the server presents an invalid certificate.

Exit code 0 means the navigation proceeds, 1 means it does not.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, checkOpts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&checkOpts.TLSError, "tls-error", false, "evaluate a certificate failure instead of a navigation")
	cmd.Flags().BoolVar(&checkOpts.Allow, "allow", false, "the user chooses to continue to an unlisted origin")
	cmd.Flags().BoolVar(&checkOpts.Decline, "decline", false, "the user chooses not to continue to an unlisted origin")
	cmd.MarkFlagsMutuallyExclusive("allow", "decline")
	cmd.MarkFlagsMutuallyExclusive("tls-error", "allow")
	cmd.MarkFlagsMutuallyExclusive("tls-error", "decline")

	return cmd
}

func runCheck(opts *RootOptions, checkOpts *CheckOptions, target string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	f := formatterFor(opts, cmd)

	// Decisions are taken against whatever the sync client can offer; a
	// failed refresh still leaves the best available list in place.
	if _, err := s.Sync.GetAllowList(ctx, false); err != nil {
		var fallback *application.FallbackError
		if !errors.As(err, &fallback) {
			return err
		}
		f.Warn("authority unreachable, deciding against the last-resort list")
	}

	tier := string(s.Enforcer.Tier())

	if checkOpts.TLSError {
		d := s.Enforcer.ResolveTLSError(target)
		if err := f.Success(tlsResult{
			Target:  target,
			Host:    d.Host,
			Tier:    tier,
			Action:  string(d.Action),
			Message: d.Message,
		}); err != nil {
			return err
		}
		if d.Action != model.TLSProceed {
			return NewExitError(ExitFailure, "connection cancelled")
		}
		return nil
	}

	nav := s.Enforcer.Navigate(target)
	if nav.State() == application.NavPendingUserDecision && (checkOpts.Allow || checkOpts.Decline) {
		if _, err := nav.Resolve(checkOpts.Allow); err != nil {
			return err
		}
	}

	d := nav.Decision()
	if err := f.Success(checkResult{
		Target:  target,
		Host:    d.Host,
		Tier:    tier,
		State:   string(nav.State()),
		Verdict: string(d.Verdict),
		Reason:  string(d.Reason),
		Message: d.Message,
	}); err != nil {
		return err
	}

	if d.Verdict != model.VerdictAllowed {
		return NewExitError(ExitFailure, fmt.Sprintf("navigation %s", d.Verdict))
	}
	return nil
}
