package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/originguard/internal/adapter/driven/authority"
	sqliteadapter "github.com/ericfisherdev/originguard/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/originguard/internal/application"
	"github.com/ericfisherdev/originguard/internal/config"
)

// clientSession is an opened application.Session together with the
// resources it was built from.
type clientSession struct {
	*application.Session

	cfg    *config.ClientConfig
	db     *sqliteadapter.DB
	logger *slog.Logger
}

// newLogger logs to w at Warn, or Debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openSession loads the client config, opens the private state database and
// restores the persisted snapshot and credential.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*clientSession, error) {
	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	interval, err := cfg.Interval()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	db, err := sqliteadapter.NewPrivateDB(cfg.StatePath)
	if err != nil {
		return nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer, sqliteadapter.SchemaClient); err != nil {
		_ = db.Close()
		return nil, err
	}

	client, err := authority.NewClient(cfg.ServerURL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	session := application.NewSession(client, sqliteadapter.NewClientStateRepo(db, cfg.StateKey), application.SessionConfig{
		Sync: application.SyncClientConfig{
			Username:        cfg.Username,
			Password:        cfg.Password,
			FallbackDomains: cfg.FallbackDomains,
		},
		Tier:            cfg.SecurityTier(),
		Institutions:    cfg.TrustedInstitutions,
		RefreshInterval: interval,
	}, logger)

	if err := session.Open(ctx); err != nil {
		session.Close()
		_ = db.Close()
		return nil, err
	}

	logger.Debug("session opened",
		"server_url", cfg.ServerURL,
		"state_path", cfg.StatePath,
		"tier", string(cfg.SecurityTier()),
		"credential_persistence", cfg.StateKey != nil,
	)

	return &clientSession{Session: session, cfg: cfg, db: db, logger: logger}, nil
}

// Close stops in-flight work and closes the state database.
func (s *clientSession) Close() {
	s.Session.Close()
	if err := s.db.Close(); err != nil {
		s.logger.Error("error closing state database", "error", err)
	}
}
