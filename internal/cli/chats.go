package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jjadal/steward/internal/chat"
)

func newChatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage saved chats",
	}

	cmd.AddCommand(newChatsListCmd())
	cmd.AddCommand(newChatsShowCmd())
	cmd.AddCommand(newChatsDeleteCmd())
	return cmd
}

func newChatsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved chats, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setupRuntime(nil)
			if err != nil {
				return err
			}
			defer rt.close()

			chats, err := rt.manager.ListChats()
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved chats")
				return nil
			}
			for _, c := range chats {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n",
					c.ID, c.LastUpdated.Format("2006-01-02 15:04"), c.Title)
			}
			return nil
		},
	}
}

func newChatsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print a chat transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setupRuntime(nil)
			if err != nil {
				return err
			}
			defer rt.close()

			if _, err := rt.manager.LoadChat(args[0]); err != nil {
				return err
			}
			conv := rt.manager.Current()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n\n", conv.Title, conv.ModelID)
			for _, turn := range conv.Turns {
				switch turn.Role {
				case chat.RoleUser:
					fmt.Fprintf(out, "you: %s\n", turn.Text())
				case chat.RoleModel:
					suffix := ""
					if turn.Stopped {
						suffix = " [stopped]"
					}
					if text := turn.Text(); text != "" {
						fmt.Fprintf(out, "%s: %s%s\n", conv.ModelID, text, suffix)
					}
					for _, call := range turn.ToolCalls() {
						fmt.Fprintf(out, "  -> %s(%s)\n", call.Name, call.Arguments)
					}
				case chat.RoleToolResult:
					if r := turn.ToolResult(); r != nil {
						status := "ok"
						if r.IsError {
							status = "failed"
						}
						fmt.Fprintf(out, "  <- %s %s\n", r.Name, status)
					}
				}
			}
			return nil
		},
	}
}

func newChatsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Delete a saved chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setupRuntime(nil)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.manager.DeleteChat(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
