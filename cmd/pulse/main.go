package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulseim/pulse/internal/auth"
	"github.com/pulseim/pulse/internal/config"
	"github.com/pulseim/pulse/internal/logging"
	"github.com/pulseim/pulse/internal/server"
)

func main() {
	root := &cobra.Command{
		Use:   "pulse",
		Short: "Realtime presence and message fan-out server",
	}
	root.AddCommand(serveCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the realtime server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.New()
			cfg, err := config.New()
			if err != nil {
				return err
			}
			srv, err := server.New(cfg)
			if err != nil {
				return err
			}
			srv.Start()
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a signed session credential for local development",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			verifier := auth.NewVerifier(cfg.AuthSecret)
			fmt.Println(verifier.Sign(args[0], ttl))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "credential lifetime")
	return cmd
}
