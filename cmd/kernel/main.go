// Command kernel boots one simulated Nachos machine: it loads the initial
// program named on the command line as PID 1 and serves the admin HTTP API
// until the machine halts (the last process exits or PID 1 calls halt()),
// mirroring cmd/kernel/main.go's sequence
// (load config, admit the initial process, wait) but replacing its
// prompt-driven scheduler start with an immediate run, since the
// low-level thread scheduler has no analog here.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nachos-go/kernel/internal/adminhttp"
	"github.com/nachos-go/kernel/internal/config"
	"github.com/nachos-go/kernel/internal/kernel"
	"github.com/nachos-go/kernel/internal/logging"
)

func main() {
	var (
		configPath string
		adminAddr string
	)

	root := &cobra.Command{
		Use: "kernel <program> [args..]",
		Short: "Boot a simulated Nachos machine and run one program to completion",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, adminAddr, args[0], args[1:])
		},
	}

	root.Flags().StringVar(&configPath, "config", "configs/kernel.json", "path to the machine's JSON configuration")
	root.Flags().StringVar(&adminAddr, "admin-addr", "", "address to serve the admin HTTP API on (empty disables it)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, adminAddr, program string, argv []string) error {
	cfg, err := config.Load[kernel.Config](configPath)
	if err != nil {
		return err
	}
	cfg.LogLevel = config.OverlayString("LOG_LEVEL", cfg.LogLevel)
	cfg.NumFrames = config.OverlayInt("NUM_FRAMES", cfg.NumFrames)

	log := logging.New(cfg.LogLevel, "kernel")

	m, err := kernel.New(*cfg, log)
	if err != nil {
		return err
	}
	defer m.Close()

	fullArgv := append([]string{program}, argv...)
	if err := m.Boot(program, fullArgv); err != nil {
		return fmt.Errorf("kernel: boot %s: %w", program, err)
	}
	log.Info("initial process booted", "program", program, "argv", fullArgv)

	if adminAddr != "" {
		admin := adminhttp.New(adminAddr, log, m.Allocator, m.Processes)
		go func() {
			if err := admin.ListenAndServe(); err != nil {
				log.Error("admin server stopped", "err", err)
			}
		}()
	}

	<-m.Halted()
	log.Info("machine halted")
	return nil
}
