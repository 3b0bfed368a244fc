// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"classpass/cli/internal/config"
	"classpass/cli/internal/identity"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var serveAddr string

// serveCmd exposes the local roster or the PostgreSQL directory as a gRPC identity
// service, so other machines can use the "grpc" provider against it.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured user directory over gRPC",
	Long: `The serve command answers Verify calls of the classpass gRPC identity service
using the "directory" or "postgres" provider configured on this machine. Clients
point their grpc_addr at it, for example grpc://host:7443 for plaintext.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a := newApp(cfg, logger)
		defer a.Close()
		if a.cfg.Provider != config.ProviderDirectory && a.cfg.Provider != config.ProviderPostgres {
			return fmt.Errorf("serve needs the directory or postgres provider, not %q", a.cfg.Provider)
		}
		p, err := a.openProvider(ctx)
		if err != nil {
			return reported(err)
		}

		lis, err := net.Listen("tcp", serveAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", serveAddr, err)
		}
		srv := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary(logger)))
		identity.RegisterIdentityServer(srv, p)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(lis) }()
		pterm.Success.Printf("Serving %s on %s\n", identity.IdentityServiceName, lis.Addr())

		select {
		case <-ctx.Done():
			pterm.Info.Println("Shutting down")
			srv.GracefulStop()
			return nil
		case err := <-errCh:
			return err
		}
	},
}

// logUnary logs every call with its status code and duration.
func logUnary(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("rpc",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("took", time.Since(start)),
		)
		return resp, err
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:7443", "Address to listen on")
}
