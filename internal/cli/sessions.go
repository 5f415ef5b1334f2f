package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored chats",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List chats, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Sessions.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("failed to list chats: %w", err)
			}
			active, _ := a.Store.Init()
			fmt.Fprint(cmd.OutOrStdout(), renderSessions(a.Sessions.Views(active)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Lifecycle.Rehydrate(cmd.Context()); err != nil {
				return err
			}
			if err := a.DeleteChat(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete chat: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Sessions.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("failed to list chats: %w", err)
			}
			ran, err := a.DeleteAllChats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to delete chats: %w", err)
			}
			if !ran {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to delete.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All chats deleted.")
			return nil
		},
	})

	return cmd
}
