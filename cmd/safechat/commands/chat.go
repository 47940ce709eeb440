package commands

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"safechat/internal/domain"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <peer-username>",
		Short: "Open an interactive conversation with a peer",
		Args:  cobra.ExactArgs(1),
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

			peer, err := resolvePeer(cmd.Context(), args[0], profile.Identity.ID)
			if err != nil {
				return err
			}

			if err := wire.Chat.Connect(); err != nil {
				return err
			}
			defer wire.Session.Logout()

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			err = wire.Chat.SelectPeer(ctx, peer.ID)
			cancel()
			if err != nil {
				return err
			}

			p := tea.NewProgram(newChatModel(wire, profile, peer), tea.WithAltScreen())
			wire.Session.SetObserver(
				func() { p.Send(refreshMsg{}) },
				func(err error) { p.Send(noticeMsg{err: err}) },
			)
			_, err = p.Run()
			return err
		},
	}
}

// resolvePeer maps a username to an identity via the user directory.
func resolvePeer(ctx context.Context, username, selfID string) (domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	users, err := wire.API.ListUsers(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	for _, u := range users {
		if u.Username == username {
			if u.ID == selfID {
				return domain.Identity{}, fmt.Errorf("cannot chat with yourself")
			}
			return u, nil
		}
	}
	return domain.Identity{}, fmt.Errorf("no such user %q", username)
}
