package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ysicing/AutoEcoleMedia/internal/seed"
)

type noopRunner struct{}

func (noopRunner) Run(context.Context) (*seed.Report, error) { return &seed.Report{}, nil }

func TestSetupJobs(t *testing.T) {
	s := NewScheduler()

	assert.NoError(t, s.SetupJobs("", noopRunner{}))
	assert.Zero(t, s.Entries())

	assert.NoError(t, s.SetupJobs("0 3 * * *", noopRunner{}))
	assert.Equal(t, 1, s.Entries())

	assert.Error(t, s.SetupJobs("not a schedule", noopRunner{}))
}

func TestUpdateJobsReplacesSchedule(t *testing.T) {
	s := NewScheduler()
	assert.NoError(t, s.SetupJobs("0 3 * * *", noopRunner{}))
	s.Start()

	s.UpdateJobs("", noopRunner{})
	assert.Zero(t, s.Entries())

	s.UpdateJobs("@every 1h", noopRunner{})
	assert.Equal(t, 1, s.Entries())

	s.Stop()
}
