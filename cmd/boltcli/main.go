// Package main provides the boltcli client CLI entry point: a small tool
// that dials a Bolt server, runs one statement, and prints the records and
// summary it streams back.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/boltcore/pkg/bolt"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "boltcli",
		Short: "boltcli - Bolt v1 protocol client",
	}

	var addr, username, password string
	var getEOF bool

	runCmd := &cobra.Command{
		Use:   "run <statement>",
		Short: "Run a single statement and print streamed records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatement(addr, username, password, args[0], getEOF)
		},
	}
	runCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7687", "Bolt server address")
	runCmd.Flags().StringVar(&username, "username", "", "Auth principal")
	runCmd.Flags().StringVar(&password, "password", "", "Auth credentials")
	runCmd.Flags().BoolVar(&getEOF, "eof", false, "Request end-of-stream metadata (discards records)")
	rootCmd.AddCommand(runCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("boltcli v%s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runStatement(addr, username, password, statement string, getEOF bool) error {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	session, err := bolt.Dial(conn)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	authToken := map[string]any{"scheme": "none"}
	if username != "" {
		authToken = map[string]any{
			"scheme":      "basic",
			"principal":   username,
			"credentials": password,
		}
	}

	serverMeta, err := session.Init(ctx, "boltcli/"+version, authToken)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	fmt.Printf("connected to %v\n", serverMeta["server"])

	stream, err := session.Run(ctx, statement, nil, getEOF)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	for {
		resp, ok := stream.Next(ctx)
		if !ok {
			break
		}
		if len(resp.Fields) > 0 {
			fmt.Println(resp.Fields)
		}
		if resp.EOF {
			fmt.Printf("summary: %v\n", resp.Metadata)
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("stream: %w", err)
	}

	return nil
}
