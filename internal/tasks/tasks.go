package tasks

import (
	"context"

	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

// Task is a long running part of the relayer. The set of tasks is closed: IntakeTask and
// MonitorTask are the only implementations.
type Task interface {
	Name() string
	Run(ctx context.Context) error
	sealed()
}

// IntakeTask serves the relay api until ctx is done.
type IntakeTask struct {
	serve func(ctx context.Context) error
}

func NewIntakeTask(serve func(ctx context.Context) error) IntakeTask {
	return IntakeTask{serve: serve}
}

func (t IntakeTask) Name() string {
	return "intake"
}

func (t IntakeTask) Run(ctx context.Context) error {
	return t.serve(ctx)
}

func (IntakeTask) sealed() {}

// ConfirmationMonitor consumes the confirmation queue.
type ConfirmationMonitor interface {
	Run(ctx context.Context, queue <-chan relay.PendingConfirmation) error
}

// MonitorTask awaits submitted transactions coming from the confirmation queue.
type MonitorTask struct {
	monitor ConfirmationMonitor
	queue   <-chan relay.PendingConfirmation
}

func NewMonitorTask(monitor ConfirmationMonitor, queue <-chan relay.PendingConfirmation) MonitorTask {
	return MonitorTask{monitor: monitor, queue: queue}
}

func (t MonitorTask) Name() string {
	return "monitor"
}

func (t MonitorTask) Run(ctx context.Context) error {
	return t.monitor.Run(ctx, t.queue)
}

func (MonitorTask) sealed() {}
