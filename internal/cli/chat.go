package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jjadal/steward/internal/engine"
)

func newChatCmd() *cobra.Command {
	var (
		model       string
		personality string
		chatID      string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message and stream the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			rt, err := setupRuntime(printSink(cmd))
			if err != nil {
				return err
			}
			defer rt.close()

			if chatID != "" {
				if _, err := rt.manager.LoadChat(chatID); err != nil {
					return err
				}
			} else {
				if _, err := rt.manager.StartNewChat(model, personality); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Ctrl-C cancels the stream rather than killing the process
			// so the partial response is kept.
			go func() {
				<-ctx.Done()
				rt.manager.CancelActiveStream()
			}()

			if err := rt.manager.SendUserMessage(ctx, message); err != nil {
				return err
			}

			conv := rt.manager.Current()
			fmt.Fprintf(os.Stderr, "\nchat: %s\n", conv.ChatID)
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model id (default from config)")
	cmd.Flags().StringVar(&personality, "personality", "", "personality id (default from config)")
	cmd.Flags().StringVar(&chatID, "chat", "", "continue an existing chat by id")

	return cmd
}

// printSink renders streaming events to the command's stdout.
func printSink(cmd *cobra.Command) engine.EventSink {
	out := cmd.OutOrStdout()
	return func(ev engine.Event) {
		switch ev.Type {
		case engine.EventDelta:
			fmt.Fprint(out, ev.Text)
		case engine.EventFinal:
			fmt.Fprintln(out)
		case engine.EventStopped:
			fmt.Fprintln(out, "\n[stopped]")
		case engine.EventError:
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", ev.Err)
		case engine.EventToolStart:
			fmt.Fprintf(os.Stderr, "\n[tool %s ...]\n", ev.ToolName)
		case engine.EventToolResult:
			status := "ok"
			if !ev.ToolSuccess {
				status = "failed"
			}
			fmt.Fprintf(os.Stderr, "[tool %s %s]\n", ev.ToolName, status)
		}
	}
}
