package report

import (
	"context"

	fx "github.com/robotalks/rawlog/pkg/framework"
	"github.com/robotalks/rawlog/pkg/staging"
)

// Mux reports to multiple reporters.
type Mux []staging.Reporter

// Report implements staging.Reporter.
func (m Mux) Report(ev *staging.Event) {
	for _, r := range m {
		r.Report(ev)
	}
}

// Run implements framework.Runnable, running reporters which are Runnable.
func (m Mux) Run(ctx context.Context) error {
	runner := fx.NewRunnerWith(ctx)
	for _, r := range m {
		if runnable, ok := r.(fx.Runnable); ok {
			runner.Go(runnable)
		}
	}
	return runner.Wait()
}
