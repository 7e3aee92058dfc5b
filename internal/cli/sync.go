package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/originguard/internal/config"
	"github.com/ericfisherdev/originguard/internal/domain/model"
)

// capabilitiesEvent is printed whenever the running session's tier changes.
type capabilitiesEvent struct {
	Event string `json:"event"`
	tierResult
}

func (e capabilitiesEvent) String() string {
	return fmt.Sprintf("%s\n%s", e.Event, e.tierResult)
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Keep the local allow-list snapshot fresh until interrupted",
		Long: `Refresh the allow-list snapshot immediately and then on the configured
refresh_interval. The client config file is watched: a tier change made with
"guardctl tier set" or by editing the file is applied to the running session
and the new capabilities are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	f := formatterFor(opts, cmd)
	var outMu sync.Mutex
	s.Enforcer.OnCapabilitiesChange(func(c model.Capabilities) {
		outMu.Lock()
		defer outMu.Unlock()
		_ = f.Success(capabilitiesEvent{Event: "tier changed", tierResult: newTierResult(c.Tier)})
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := config.WatchClient(ctx, opts.ConfigPath, s.logger, func(cfg *config.ClientConfig) {
			s.ApplyTier(cfg.SecurityTier())
		})
		if err != nil {
			s.logger.Error("config watcher stopped", "error", err)
		}
	}()

	s.Run(ctx)

	cancel()
	wg.Wait()
	return nil
}
