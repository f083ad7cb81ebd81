package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	nlogger "github.com/neutron-org/neutron-logger"

	"github.com/gasless-relayer/gasless-relayer/internal/app"
	"github.com/gasless-relayer/gasless-relayer/internal/config"
	relayerhttp "github.com/gasless-relayer/gasless-relayer/internal/http"
	"github.com/gasless-relayer/gasless-relayer/internal/relay"
	"github.com/gasless-relayer/gasless-relayer/internal/tasks"
)

const (
	mainContext = "main"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relayer main app",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startRelayer()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}

func startRelayer() error {
	contexts := append([]string{mainContext, relayerhttp.ServerContext}, app.LogContexts()...)
	logRegistry, err := nlogger.NewRegistry(contexts...)
	if err != nil {
		return fmt.Errorf("couldn't initialize loggers registry: %w", err)
	}
	logger := logRegistry.Get(mainContext)
	logger.Info("gasless-relayer starts...", zap.String("version", app.Version), zap.String("commit", app.Commit))

	cfg, err := config.NewGaslessRelayerConfig(logger)
	if err != nil {
		logger.Error("cannot initialize relayer config", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, err := app.NewDefaultStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create NewDefaultStorage", zap.Error(err))
		return err
	}
	defer func(storage relay.Storage) {
		if err := storage.Close(); err != nil {
			logger.Error("failed to close storage", zap.Error(err))
		}
	}(storage)

	deps, err := app.NewDefaultDependencyContainer(ctx, cfg, logRegistry)
	if err != nil {
		logger.Error("failed to create NewDefaultDependencyContainer", zap.Error(err))
		return err
	}
	defer deps.Close()

	// The queue is never closed: producers and the consumer stop on context cancellation.
	queue := make(chan relay.PendingConfirmation, cfg.ConfirmationQueueCapacity)

	relayer := app.NewDefaultRelayer(cfg, logRegistry, storage, deps, queue)
	monitor := app.NewDefaultMonitor(cfg, logRegistry, storage, deps)
	if err := monitor.Recover(ctx); err != nil {
		logger.Error("failed to recover pending requests", zap.Error(err))
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	supervisor := tasks.NewSupervisor(
		logRegistry.Get(app.SupervisorContext),
		tasks.NewIntakeTask(func(ctx context.Context) error {
			return relayerhttp.Run(ctx, logRegistry, relayer, storage, cfg.ListenAddr)
		}),
		tasks.NewMonitorTask(monitor, queue),
	)

	if err := supervisor.Run(ctx, sigs); err != nil {
		logger.Error("relayer stopped with an error", zap.Error(err))
		return err
	}

	logger.Info("relayer stopped")
	return nil
}
