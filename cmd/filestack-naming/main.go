// Command filestack-naming runs the naming node: it serves the client
// and registration interfaces on the module's two well-known ports
// until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roma2023/FileStack/internal/cmdutil"
	"github.com/roma2023/FileStack/internal/flog"
	"github.com/roma2023/FileStack/internal/namingnode"
	"github.com/roma2023/FileStack/internal/rpcx"
	"github.com/roma2023/FileStack/pkg/filestack"
)

type config struct {
	clientAddr       string
	registrationAddr string
	logFile          string
	verbose          bool
}

func newCommand() *cobra.Command {
	cfg := &config{}
	cmd := &cobra.Command{
		Use:   "filestack-naming",
		Short: "filestack-naming runs the file system's naming node.",
		Long: `filestack-naming holds the namespace (files, directories, and the
primary/replica storage assignments for every file) and serves it to
clients and storage nodes over the custom RPC transport.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.clientAddr, "client-address",
		fmt.Sprintf("127.0.0.1:%d", filestack.DefaultClientPort),
		"Address to bind the client-facing metadata service on.")
	cmd.Flags().StringVar(&cfg.registrationAddr, "registration-address",
		fmt.Sprintf("127.0.0.1:%d", filestack.DefaultRegistrationPort),
		"Address to bind the storage-node registration service on.")
	cmd.Flags().StringVar(&cfg.logFile, "log-file", "", "Path to a rotated log file; stderr if empty.")
	cmd.Flags().BoolVar(&cfg.verbose, "verbose", false, "Enable debug-level logging.")
	return cmd
}

func run(ctx context.Context, cfg *config) error {
	logger, closeLog, err := flog.New(flog.Options{LogFile: cfg.logFile, Verbose: cfg.verbose})
	if err != nil {
		return fmt.Errorf("filestack-naming: configuring logger: %w", err)
	}
	defer closeLog()

	ns := namingnode.New(logger)

	clientSrv := rpcx.NewServer(namingnode.ClientServiceSpec, ns.ClientHandlers(), logger)
	clientSrv.OnListenError = func(err error) bool {
		logger.Errorf("client service accept error: %v", err)
		return true
	}
	registrationSrv := rpcx.NewServer(namingnode.RegistrationServiceSpec, ns.RegistrationHandlers(), logger)
	registrationSrv.OnListenError = func(err error) bool {
		logger.Errorf("registration service accept error: %v", err)
		return true
	}

	return cmdutil.RunSignalWrapper(ctx, func(ctx context.Context) error {
		if _, err := clientSrv.Start("tcp", cfg.clientAddr); err != nil {
			return fmt.Errorf("filestack-naming: starting client service: %w", err)
		}
		if _, err := registrationSrv.Start("tcp", cfg.registrationAddr); err != nil {
			clientSrv.Stop()
			return fmt.Errorf("filestack-naming: starting registration service: %w", err)
		}
		logger.Infof("naming node listening: client=%s registration=%s", cfg.clientAddr, cfg.registrationAddr)
		<-ctx.Done()
		clientSrv.Stop()
		registrationSrv.Stop()
		return nil
	})
}

func main() {
	cmdutil.Exit(newCommand().Execute())
}
