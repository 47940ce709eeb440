package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			users, err := wire.API.ListUsers(ctx)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Println("no users registered")
				return nil
			}
			for _, u := range users {
				fmt.Printf("%s\t%s\n", u.Username, u.ID)
			}
			return nil
		},
	}
}
