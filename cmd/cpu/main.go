// Command cpu is a heartbeat sidecar that pings a running memoria instance,
// grounded in cmd/cpu's handshake-then-poll startup against cmd/memoria.
// The original instruction-fetch loop is out of scope here; this binary
// keeps only the connectivity-check shape, tagging each ping with a fresh
// trace ID the way the original tagged each cross-process message.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nachos-go/kernel/internal/logging"
	"github.com/nachos-go/kernel/internal/transport"
)

func main() {
	var (
		memoriaAddr string
		interval time.Duration
		logLevel string
	)

	root := &cobra.Command{
		Use: "cpu",
		Short: "Ping a memoria instance on a fixed interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logLevel, "cpu")
			client := transport.NewClient(memoriaAddr, "cpu")

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for range ticker.C {
				traceID := uuid.NewString()
				if err := client.Ping(); err != nil {
					log.Warn("memoria unreachable", "trace_id", traceID, "err", err)
					continue
				}
				log.Info("memoria alive", "trace_id", traceID)
			}
			return nil
		},
	}

	root.Flags().StringVar(&memoriaAddr, "memoria-addr", "http://127.0.0.1:9002", "memoria base URL")
	root.Flags().DurationVar(&interval, "interval", 5*time.Second, "ping interval")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
