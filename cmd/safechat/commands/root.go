package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"safechat/internal/app"
)

var (
	home       string
	apiBase    string
	wsBase     string
	passphrase string
	verbose    bool

	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:          "safechat",
		Short:        "Encrypted chat client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".safechat")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(log)

			var err error
			wire, err = app.NewWire(app.Config{
				Home:    home,
				APIBase: apiBase,
				WSBase:  wsBase,
				Log:     log,
			})
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.safechat)")
	root.PersistentFlags().StringVar(&apiBase, "api", "https://localhost:8000", "data API base URL")
	root.PersistentFlags().StringVar(&wsBase, "ws", "wss://localhost:8000/ws", "websocket base URL")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting stored credentials")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(loginCmd(), whoamiCmd(), usersCmd(), chatCmd(), logoutCmd())
	return root.Execute()
}
