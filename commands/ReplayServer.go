package commands

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/aunum/log"
	"github.com/samuelfneumann/godqn/replay"
	"github.com/samuelfneumann/godqn/replay/monitor"
	"github.com/samuelfneumann/godqn/replay/rpc"
	"github.com/spf13/cobra"
)

// ReplayServerCommand returns the command which serves a standalone
// prioritized replay table over gRPC
func ReplayServerCommand() *cobra.Command {
	var (
		addr        string
		monitorAddr string
		c           replay.ServerConfig
	)

	command := &cobra.Command{
		Use:   "replay-server",
		Short: "Serve a prioritized replay table over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Seed = seed
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT,
				syscall.SIGTERM)
			defer stop()
			return serveReplay(ctx, addr, monitorAddr, c)
		},
	}

	flags := command.Flags()
	flags.StringVar(&addr, "addr", ":7777", "Address to serve gRPC on")
	flags.StringVar(&monitorAddr, "monitor", "",
		"Address to serve the HTTP monitor on, disabled if empty")
	flags.IntVar(&c.Features, "features", 4,
		"Number of features in each state")
	flags.IntVar(&c.MinSize, "min-size", 1,
		"Number of items held before sampling is allowed")
	flags.IntVar(&c.MaxSize, "max-size", 1_000_000,
		"Maximum number of items held")
	flags.Float64Var(&c.PriorityExponent, "priority-exponent", 0.6,
		"Exponent applied to priorities when sampling")
	return command
}

func serveReplay(ctx context.Context, addr, monitorAddr string,
	c replay.ServerConfig) error {
	server, err := replay.NewServer(c)
	if err != nil {
		return fmt.Errorf("replay-server: %v", err)
	}
	defer server.Close()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("replay-server: %v", err)
	}

	if monitorAddr != "" {
		m, err := monitor.New(server)
		if err != nil {
			return fmt.Errorf("replay-server: %v", err)
		}
		go func() {
			if err := m.ListenAndServe(ctx, monitorAddr); err != nil {
				log.Errorf("replay-server: %v", err)
			}
		}()
	}

	grpcServer := rpc.NewGRPCServer(server)
	go func() {
		<-ctx.Done()

		// Wake blocked samplers so that in-flight calls can finish
		server.Close()
		grpcServer.GracefulStop()
	}()

	log.Infof("replay server listening on %v", lis.Addr())
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("replay-server: %v", err)
	}
	log.Infof("replay server stopped after %v inserts", server.Info().Inserts)
	return nil
}
