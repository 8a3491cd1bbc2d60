package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Controller defines the logic executed in every loop iteration.
type Controller interface {
	Control(ControlContext) error
}

// Stopper is invoked once when the loop is asked to stop, after the
// last iteration. The context passed in is not canceled by the stop
// request itself.
type Stopper interface {
	Stop(context.Context) error
}

// TimeSource provides the time for controlling logic.
type TimeSource interface {
	Time() time.Time
}

// ControlContext provides the context of current control
// iteration.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// PriorityLevel gets the current priority level.
	PriorityLevel() int

	LoopControl
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefine priority levels
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvIngest is the alias of priority level for pulling source data.
	PrLvIngest = PrLvHigh
	// PrLvDrain is the alias of priority level for committing to sinks.
	PrLvDrain = PrLvNormal
	// PrLvReport is the alias of priority level for reporting.
	PrLvReport = PrLvIdle - 1
)

// LoopControl exposes access to the controlling loop.
type LoopControl interface {
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current iteration.
	TriggerNext()
	// RequestStop asks the loop to run its stoppers and exit after
	// the current iteration.
	RequestStop()
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// StopFunc defines the func form of Stopper.
type StopFunc func(context.Context) error

// Stop implements Stopper.
func (f StopFunc) Stop(ctx context.Context) error {
	return f(ctx)
}
