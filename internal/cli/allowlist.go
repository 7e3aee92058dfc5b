package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/originguard/internal/application"
	"github.com/ericfisherdev/originguard/internal/domain/model"
)

// listResult is the output of the list command.
type listResult struct {
	Origins  []string `json:"origins"`
	Count    int      `json:"count"`
	State    string   `json:"state"`
	Fallback bool     `json:"fallback,omitempty"`
}

func (r listResult) String() string {
	if r.Count == 0 {
		return "(allow-list is empty)"
	}
	return strings.Join(r.Origins, "\n")
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the allow-list",
		Long: `Show the allow-list. A fresh local snapshot is used without
contacting the authority unless --refresh is given. When the authority is
unreachable a cached snapshot within the grace window is shown; failing that
the last-resort list is shown and the command exits 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, refresh, cmd)
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "fetch from the authority even if the snapshot is fresh")

	return cmd
}

func runList(opts *RootOptions, refresh bool, cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	f := formatterFor(opts, cmd)

	origins, err := s.Sync.GetAllowList(ctx, refresh)
	var fallback *application.FallbackError
	switch {
	case errors.As(err, &fallback):
		f.Warn("authority unreachable, showing last-resort list (%v)", fallback.Err)
		if outErr := f.Success(listResult{
			Origins:  nonNil(fallback.Origins),
			Count:    len(fallback.Origins),
			State:    fallback.State.String(),
			Fallback: true,
		}); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "allow-list unavailable", err)
	case err != nil:
		return err
	}

	return f.Success(listResult{
		Origins: nonNil(origins),
		Count:   len(origins),
		State:   s.Sync.State().String(),
	})
}

// entryResult is the output of the add, update and remove commands.
type entryResult struct {
	Action    string    `json:"action"`
	Origin    string    `json:"origin"`
	AddedBy   string    `json:"added_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func (r entryResult) String() string {
	return fmt.Sprintf("%s %s", r.Action, r.Origin)
}

func newEntryResult(action string, e model.Entry) entryResult {
	return entryResult{
		Action:    action,
		Origin:    e.Origin,
		AddedBy:   e.AddedBy,
		UpdatedBy: e.UpdatedBy,
		UpdatedAt: e.UpdatedAt,
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <origin>",
		Short: "Add an origin to the allow-list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(opts, cmd, "added", func(s *clientSession) (model.Entry, error) {
				return s.Sync.AddOrigin(cmd.Context(), args[0])
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <old-origin> <new-origin>",
		Short: "Replace an origin on the allow-list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(opts, cmd, "updated", func(s *clientSession) (model.Entry, error) {
				return s.Sync.UpdateOrigin(cmd.Context(), args[0], args[1])
			})
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <origin>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove an origin from the allow-list",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(opts, cmd, "removed", func(s *clientSession) (model.Entry, error) {
				return s.Sync.RemoveOrigin(cmd.Context(), args[0])
			})
		},
	}
}

func runMutation(opts *RootOptions, cmd *cobra.Command, action string, op func(*clientSession) (model.Entry, error)) error {
	s, err := openSession(cmd.Context(), opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	entry, err := op(s)
	if err != nil {
		return err
	}
	return formatterFor(opts, cmd).Success(newEntryResult(action, entry))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
