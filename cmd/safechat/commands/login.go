package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"safechat/internal/keycodec"
)

func loginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Register or log in and store your identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if password == "" {
				return fmt.Errorf("password required (--password)")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			profile, err := wire.Chat.Login(ctx, args[0], password, passphrase)
			if err != nil {
				return err
			}

			fmt.Printf("Logged in as %s (%s)\n", profile.Identity.Username, profile.Identity.ID)
			fmt.Printf("Key fingerprint: %s\n", keycodec.Fingerprint(profile.Identity.PublicKey))
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}
