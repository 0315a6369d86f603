package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/pipeline"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.StageChanged(models.StageBuilding)
	m.StageChanged(models.StageBuilding)
	m.StageChanged(models.StageSuccess)

	start := time.Now()
	m.AttemptFinished(&pipeline.Result{
		Outcome: models.DeploymentOutcome{
			Status:         models.OutcomeOK,
			DeployedTokens: []models.DeployedToken{{ID: "Deployed0"}, {ID: "Deployed1"}},
			SkippedTokens:  []models.SkippedToken{{ID: "Skipped0"}},
		},
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
	})
	m.AttemptFinished(&pipeline.Result{Outcome: models.ErrorOutcome("Transaction failed")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stageTransitions.WithLabelValues("building")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageTransitions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deployments.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deployments.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tokens.WithLabelValues("deployed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokens.WithLabelValues("skipped")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.attemptDuration))
}
