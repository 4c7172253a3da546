package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jjadal/steward/internal/engine"
	"github.com/jjadal/steward/internal/gateway"
)

func newGatewayCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Start the WebSocket gateway server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The manager's sink broadcasts through the server, which is
			// built after the manager, so events route via a late-bound
			// forward.
			var forward engine.EventSink
			rt, err := setupRuntime(func(ev engine.Event) {
				if forward != nil {
					forward(ev)
				}
			})
			if err != nil {
				return err
			}
			defer rt.close()

			cfg := rt.cfg
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			srv := gateway.New(cfg, log,
				gateway.WithTools(rt.tools),
				gateway.WithUsage(rt.usage),
			)
			srv.AttachManager(rt.manager)
			forward = srv.EventSink()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: loopback or lan (overrides config)")

	return cmd
}
