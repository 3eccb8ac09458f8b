package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/app"
	"github.com/talkincode/shopsync/internal/webserver"
	"go.uber.org/zap"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config string
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:   "shopsync",
		Short: "Storefront state server and sync client",
	}
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to the yaml config file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newAdvanceCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "shopsync", version)
		},
	})
	return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the rest api and the realtime channel",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.Config)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			application := app.NewApplication(cfg)
			if err := application.Init(ctx); err != nil {
				return err
			}
			defer application.Release()

			srv := webserver.NewServer(cfg)
			application.Mount(srv)
			zap.S().Infof("shopsync %s listening on %s", version, cfg.Addr())
			return srv.Start(ctx)
		},
	}
}
