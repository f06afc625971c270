package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordEntities(t *testing.T) {
	before := testutil.ToFloat64(entitiesTotal.WithLabelValues("student", "created"))

	RecordEntities("student", "created", 3)
	RecordEntities("student", "created", 0)

	after := testutil.ToFloat64(entitiesTotal.WithLabelValues("student", "created"))
	assert.Equal(t, 3.0, after-before)
}

func TestRunLifecycle(t *testing.T) {
	active := testutil.ToFloat64(runsActive)
	completed := testutil.ToFloat64(runsTotal.WithLabelValues("completed"))

	RunStarted()
	assert.Equal(t, active+1, testutil.ToFloat64(runsActive))

	RunFinished("completed", 2*time.Second)
	assert.Equal(t, active, testutil.ToFloat64(runsActive))
	assert.Equal(t, completed+1, testutil.ToFloat64(runsTotal.WithLabelValues("completed")))
}

func TestRecordRowAndAttempt(t *testing.T) {
	okRows := testutil.ToFloat64(rowsTotal.WithLabelValues("ok"))
	failedAttempts := testutil.ToFloat64(attemptsTotal.WithLabelValues("failed"))

	RecordRow(true)
	RecordAttempt(false)

	assert.Equal(t, okRows+1, testutil.ToFloat64(rowsTotal.WithLabelValues("ok")))
	assert.Equal(t, failedAttempts+1, testutil.ToFloat64(attemptsTotal.WithLabelValues("failed")))
}
