package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/originguard/internal/config"
	"github.com/ericfisherdev/originguard/internal/domain/model"
)

// tierResult describes a tier and the session capabilities it grants.
type tierResult struct {
	Tier                  string `json:"tier"`
	AllowInsecureProtocol bool   `json:"allow_insecure_protocol"`
	RequireCertificates   bool   `json:"require_certificate_validation"`
	DownloadsEnabled      bool   `json:"downloads_enabled"`
	ClipboardEnabled      bool   `json:"clipboard_enabled"`
	ScreenCaptureDisabled bool   `json:"screen_capture_disabled"`
}

func newTierResult(t model.Tier) tierResult {
	p := t.Policy()
	c := model.CapabilitiesFor(t)
	return tierResult{
		Tier:                  string(t),
		AllowInsecureProtocol: p.AllowInsecureProtocol,
		RequireCertificates:   p.RequireCertificateValidation,
		DownloadsEnabled:      c.DownloadsEnabled,
		ClipboardEnabled:      c.ClipboardEnabled,
		ScreenCaptureDisabled: c.ScreenCaptureDisabled,
	}
}

func (r tierResult) String() string {
	return fmt.Sprintf("tier: %s\n  insecure http allowed:     %s\n  certificates enforced:     %s\n  downloads enabled:         %s\n  clipboard enabled:         %s\n  screen capture allowed:    %s",
		r.Tier,
		yesNo(r.AllowInsecureProtocol),
		yesNo(r.RequireCertificates),
		yesNo(r.DownloadsEnabled),
		yesNo(r.ClipboardEnabled),
		yesNo(!r.ScreenCaptureDisabled),
	)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// NewTierCommand creates the tier command with its get and set subcommands.
func NewTierCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Show or change the security tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTierGet(opts, cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the configured tier and the capabilities it grants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTierGet(opts, cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <basic|standard|maximum>",
		Short:     "Change the tier in the client config",
		Long:      "Change the tier in the client config. A running `guardctl sync` picks the change up immediately.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.TierBasic), string(model.TierStandard), string(model.TierMaximum)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTierSet(opts, args[0], cmd)
		},
	})

	return cmd
}

func runTierGet(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return err
	}
	return formatterFor(opts, cmd).Success(newTierResult(cfg.SecurityTier()))
}

func runTierSet(opts *RootOptions, value string, cmd *cobra.Command) error {
	tier, err := model.ParseTier(value)
	if err != nil {
		return err
	}

	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return err
	}
	cfg.Tier = string(tier)
	if err := config.SaveClient(opts.ConfigPath, cfg); err != nil {
		return err
	}

	return formatterFor(opts, cmd).Success(newTierResult(tier))
}
