package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRegistryPreRegistersEveryComponent(t *testing.T) {
	r := NewRegistry("test")
	report := r.Health()
	for _, c := range allComponents {
		_, ok := report.Components[c]
		assert.True(t, ok, "component %s missing from health report", c)
	}
	assert.Equal(t, HealthHealthy, report.System)
}

func TestRecordErrorDegradesThenUnhealthiesComponent(t *testing.T) {
	r := NewRegistry("test")

	for i := 0; i < degradedErrorStreak; i++ {
		r.RecordError(ComponentRisk)
	}
	assert.Equal(t, HealthDegraded, r.Health().Components[ComponentRisk])

	for i := degradedErrorStreak; i < unhealthyErrorStreak; i++ {
		r.RecordError(ComponentRisk)
	}
	assert.Equal(t, HealthUnhealthy, r.Health().Components[ComponentRisk])
}

func TestRecordSuccessResetsErrorStreak(t *testing.T) {
	r := NewRegistry("test")
	for i := 0; i < degradedErrorStreak; i++ {
		r.RecordError(ComponentBundle)
	}
	assert.Equal(t, HealthDegraded, r.Health().Components[ComponentBundle])

	r.RecordSuccess(ComponentBundle)
	assert.Equal(t, HealthHealthy, r.Health().Components[ComponentBundle])
}

func TestRecordLatencyDrivesHealthThresholds(t *testing.T) {
	r := NewRegistry("test")
	r.RecordLatency(ComponentIngest, unhealthyLatencySeconds+1)
	assert.Equal(t, HealthUnhealthy, r.Health().Components[ComponentIngest])
}

func TestSystemHealthIsOrOfWorstAcrossComponents(t *testing.T) {
	r := NewRegistry("test")
	for i := 0; i < unhealthyErrorStreak; i++ {
		r.RecordError(ComponentWallet)
	}
	report := r.Health()
	assert.Equal(t, HealthUnhealthy, report.Components[ComponentWallet])
	assert.Equal(t, HealthHealthy, report.Components[ComponentScorer])
	assert.Equal(t, HealthUnhealthy, report.System)
}

func TestWorsePicksMoreSevereState(t *testing.T) {
	assert.Equal(t, HealthDegraded, Worse(HealthHealthy, HealthDegraded))
	assert.Equal(t, HealthUnhealthy, Worse(HealthDegraded, HealthUnhealthy))
	assert.Equal(t, HealthHealthy, Worse(HealthHealthy, HealthHealthy))
}
