package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"safechat/internal/keycodec"
)

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the stored identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			profile, ok, err := wire.Chat.Restore(passphrase)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("not logged in. run: safechat login <username>")
			}
			fmt.Printf("%s (%s)\n", profile.Identity.Username, profile.Identity.ID)
			fmt.Printf("Key fingerprint: %s\n", keycodec.Fingerprint(profile.Identity.PublicKey))
			return nil
		},
	}
}
