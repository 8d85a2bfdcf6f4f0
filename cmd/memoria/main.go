// Command memoria serves a standalone RPC front-end onto a frame allocator,
// grounded in cmd/memoria: in that architecture memory management ran as
// its own process, reached over HTTP by the kernel and CPU processes. Here
// the machine's real memory management stays in-process inside cmd/kernel,
// since address translation needs to stay on the hot path rather than take
// a wire hop per touched byte; this binary keeps the transport layer alive
// against a locally-owned frame pool for integration tests that want to
// exercise the RPC envelope without standing up a whole machine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nachos-go/kernel/internal/frame"
	"github.com/nachos-go/kernel/internal/logging"
	"github.com/nachos-go/kernel/internal/transport"
)

func main() {
	var (
		addr string
		numFrames int
		logLevel string
	)

	root := &cobra.Command{
		Use: "memoria",
		Short: "Serve frame-allocation RPCs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logLevel, "memoria")
			alloc := frame.New(numFrames, log)

			srv := transport.NewServer("memoria", log)
			srv.Handle(transport.KindAllocate, allocateHandler(alloc))
			srv.Handle(transport.KindFree, freeHandler(alloc))

			log.Info("memoria listening", "addr", addr, "frames", numFrames)
			return srv.ListenAndServe(addr)
		},
	}

	root.Flags().StringVar(&addr, "addr", ":9002", "listen address")
	root.Flags().IntVar(&numFrames, "frames", 64, "physical frame count")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
