// Command io simulates a blocking I/O device, grounded in cmd/io/io.go: it
// accepts a device-busy request, sleeps for the requested duration, and
// reports completion, standing in for the interrupt-driven hardware timer
// this kernel treats as an out-of-scope collaborator.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nachos-go/kernel/internal/logging"
	"github.com/nachos-go/kernel/internal/transport"
)

type ioRequest struct {
	PID int `json:"pid"`
	DurationMs int `json:"duration_ms"`
}

func decodeBody(body interface{}, dst interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func main() {
	var (
		addr string
		logLevel string
	)

	root := &cobra.Command{
		Use: "io",
		Short: "Simulate a blocking I/O device over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logLevel, "io")
			srv := transport.NewServer("io", log)

			srv.Handle("device_busy", func(env *transport.Envelope) (interface{}, error) {
				var req ioRequest
				if err := decodeBody(env.Body, &req); err != nil {
					return nil, err
				}
				log.Info("device busy", "pid", req.PID, "duration_ms", req.DurationMs)
				time.Sleep(time.Duration(req.DurationMs) * time.Millisecond)
				log.Info("device idle", "pid", req.PID)
				return map[string]bool{"ok": true}, nil
			})

			log.Info("io listening", "addr", addr)
			return srv.ListenAndServe(addr)
		},
	}

	root.Flags().StringVar(&addr, "addr", ":9003", "listen address")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
