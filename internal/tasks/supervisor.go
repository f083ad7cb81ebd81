package tasks

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Supervisor runs tasks with a shared lifetime: when one of them returns, or a signal arrives,
// every other task is cancelled.
type Supervisor struct {
	tasks  []Task
	logger *zap.Logger
}

func NewSupervisor(logger *zap.Logger, tasks ...Task) *Supervisor {
	return &Supervisor{
		tasks:  tasks,
		logger: logger,
	}
}

// Run blocks until every task returned and returns the first task error. A task returning
// without an error still stops the others.
func (s *Supervisor) Run(ctx context.Context, signals <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, task := range s.tasks {
		task := task
		group.Go(func() error {
			defer cancel()

			s.logger.Info("task started", zap.String("task", task.Name()))
			if err := task.Run(groupCtx); err != nil {
				s.logger.Error("task exited with an error", zap.String("task", task.Name()), zap.Error(err))
				return fmt.Errorf("%s: %w", task.Name(), err)
			}

			s.logger.Info("task exited", zap.String("task", task.Name()))
			return nil
		})
	}

	select {
	case sig := <-signals:
		s.logger.Info("received termination signal, gracefully shutting down...",
			zap.String("signal", sig.String()))
		cancel()
	case <-groupCtx.Done():
	}

	return group.Wait()
}
