package cli

import (
	"github.com/spf13/cobra"

	"github.com/vovakirdan/pollchat/internal/app"
	"github.com/vovakirdan/pollchat/internal/config"
	chatlog "github.com/vovakirdan/pollchat/internal/log"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var overrides config.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat RPC server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLog := chatlog.NewWithWriter(cmd.ErrOrStderr(), "info", "console")

			cfg, path, err := config.Load(bootLog, root.configPath)
			if err != nil {
				return err
			}

			overrides.LogLevel = root.logLevel
			cfg.UpdateFrom(overrides)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := chatlog.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting pollchat server")

			application, err := app.New(cmd.Context(), &cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(cmd.Context()); err != nil {
				return err
			}

			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "log format (console or json)")
	flags.StringVar(&overrides.DB.Driver, "db-driver", "", "backing store (postgres or sqlite)")
	flags.StringVar(&overrides.DB.Host, "db-host", "", "postgres host")
	flags.IntVar(&overrides.DB.Port, "db-port", 0, "postgres port")
	flags.StringVar(&overrides.DB.Name, "db-name", "", "postgres database name")
	flags.StringVar(&overrides.DB.User, "db-user", "", "postgres user")
	flags.StringVar(&overrides.DB.Password, "db-password", "", "postgres password")
	flags.StringVar(&overrides.DB.Path, "db-path", "", "sqlite database file")

	return cmd
}
