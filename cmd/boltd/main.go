// Package main provides the boltd server CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orneryd/boltcore/pkg/auth"
	"github.com/orneryd/boltcore/pkg/bolt"
	"github.com/orneryd/boltcore/pkg/boltlog"
	"github.com/orneryd/boltcore/pkg/config"
	"github.com/orneryd/boltcore/pkg/demoexec"
	"github.com/orneryd/boltcore/pkg/graphstore"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "boltd",
		Short: "boltd - Bolt v1 protocol server",
		Long: `boltd speaks the Bolt v1 wire protocol: handshake, chunked
PackStream framing, and the INIT/RUN/PULL_ALL/DISCARD_ALL/RESET/
ACK_FAILURE session state machine, backed by a small graph store.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("boltd v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Bolt server",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config-file", "", "Optional YAML config overlay path")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if path, _ := cmd.Flags().GetString("config-file"); path != "" {
		os.Setenv("BOLTCORE_CONFIG_FILE", path)
	}

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Logging.Level {
	case "DEBUG":
		boltlog.SetLevel(boltlog.LevelDebug)
	case "WARN":
		boltlog.SetLevel(boltlog.LevelWarn)
	case "ERROR":
		boltlog.SetLevel(boltlog.LevelError)
	default:
		boltlog.SetLevel(boltlog.LevelInfo)
	}

	boltlog.Info("starting boltd", map[string]any{"version": version, "config": cfg.String()})

	if !cfg.Database.InMemory {
		if err := os.MkdirAll(cfg.Database.DataDir, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	store, err := graphstore.Open(graphstore.Options{
		DataDir:  cfg.Database.DataDir,
		InMemory: cfg.Database.InMemory,
	})
	if err != nil {
		return fmt.Errorf("opening graph store: %w", err)
	}
	defer store.Close()

	boltConfig := bolt.DefaultConfig()
	boltConfig.MaxConnections = cfg.Server.MaxConnections
	boltConfig.ReadBufferSize = cfg.Server.ReadBufferSize
	boltConfig.WriteBufferSize = cfg.Server.WriteBufferSize
	boltConfig.MaxChunkSize = cfg.Server.MaxChunkSize
	boltConfig.HandshakeTimeout = cfg.Server.HandshakeTimeout
	boltConfig.RequireAuth = cfg.Auth.Enabled

	if cfg.Auth.Enabled {
		authConfig := auth.DefaultAuthConfig()
		authConfig.JWTSecret = []byte(cfg.Auth.JWTSecret)
		authenticator, err := auth.NewAuthenticator(authConfig)
		if err != nil {
			return fmt.Errorf("creating authenticator: %w", err)
		}
		if _, err := authenticator.CreateUser(cfg.Auth.InitialUsername, cfg.Auth.InitialPassword, []auth.Role{auth.RoleAdmin}); err != nil {
			boltlog.Warn("initial user not created", map[string]any{"err": err.Error()})
		}
		boltConfig.Authenticator = bolt.NewAuthenticatorAdapter(authenticator)
	}

	executor := demoexec.New(store)
	srv := bolt.NewServer(boltConfig, executor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		boltlog.Info("shutdown signal received", nil)
		cancel()
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.BoltAddress, cfg.Server.BoltPort)
	boltlog.Info("listening", map[string]any{"addr": addr})

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	boltlog.Info("server stopped", nil)
	return nil
}
