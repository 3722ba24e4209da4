// Command filestack-storage runs a storage node: it serves the data and
// control interfaces over a local directory tree, registers that tree
// with a naming node at startup, and runs until SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roma2023/FileStack/internal/cmdutil"
	"github.com/roma2023/FileStack/internal/flog"
	"github.com/roma2023/FileStack/internal/rpcx"
	"github.com/roma2023/FileStack/internal/storagenode"
	"github.com/roma2023/FileStack/pkg/filestack"
)

type config struct {
	root             string
	dataAddr         string
	controlAddr      string
	registrationAddr string
	logFile          string
	verbose          bool
}

func newCommand() *cobra.Command {
	cfg := &config{}
	cmd := &cobra.Command{
		Use:   "filestack-storage root-directory",
		Short: "filestack-storage runs one storage node over a local directory tree.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.root = args[0]
			cmd.SilenceUsage = true
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.dataAddr, "data-address", "127.0.0.1:0",
		"Address to bind the data service on (size, read, write).")
	cmd.Flags().StringVar(&cfg.controlAddr, "control-address", "127.0.0.1:0",
		"Address to bind the control service on (create, delete).")
	cmd.Flags().StringVar(&cfg.registrationAddr, "naming-registration-address",
		fmt.Sprintf("127.0.0.1:%d", filestack.DefaultRegistrationPort),
		"Address of the naming node's registration service.")
	cmd.Flags().StringVar(&cfg.logFile, "log-file", "", "Path to a rotated log file; stderr if empty.")
	cmd.Flags().BoolVar(&cfg.verbose, "verbose", false, "Enable debug-level logging.")
	return cmd
}

func run(ctx context.Context, cfg *config) error {
	logger, closeLog, err := flog.New(flog.Options{LogFile: cfg.logFile, Verbose: cfg.verbose})
	if err != nil {
		return fmt.Errorf("filestack-storage: configuring logger: %w", err)
	}
	defer closeLog()

	node, err := storagenode.NewNode(cfg.root, logger)
	if err != nil {
		return fmt.Errorf("filestack-storage: %w", err)
	}

	dataSrv := rpcx.NewServer(storagenode.DataServiceSpec, node.DataHandlers(), logger)
	dataSrv.OnListenError = func(err error) bool { logger.Errorf("data service accept error: %v", err); return true }
	controlSrv := rpcx.NewServer(storagenode.ControlServiceSpec, node.ControlHandlers(), logger)
	controlSrv.OnListenError = func(err error) bool { logger.Errorf("control service accept error: %v", err); return true }

	return cmdutil.RunSignalWrapper(ctx, func(ctx context.Context) error {
		dataBound, err := dataSrv.Start("tcp", cfg.dataAddr)
		if err != nil {
			return fmt.Errorf("filestack-storage: starting data service: %w", err)
		}
		controlBound, err := controlSrv.Start("tcp", cfg.controlAddr)
		if err != nil {
			dataSrv.Stop()
			return fmt.Errorf("filestack-storage: starting control service: %w", err)
		}
		logger.Infof("storage node listening: data=%s control=%s", dataBound, controlBound)

		registration := rpcx.NewProxy(storagenode.RegistrationServiceSpec,
			rpcx.Addr{Network: "tcp", Address: cfg.registrationAddr})
		selfData := rpcx.Addr{Network: "tcp", Address: dataBound.String()}
		selfControl := rpcx.Addr{Network: "tcp", Address: controlBound.String()}
		if err := node.Register(registration, selfData, selfControl); err != nil {
			logger.Errorf("registering with naming node at %s: %v", cfg.registrationAddr, err)
		}

		<-ctx.Done()
		dataSrv.Stop()
		controlSrv.Stop()
		return nil
	})
}

func main() {
	cmdutil.Exit(newCommand().Execute())
}
