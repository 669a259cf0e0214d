package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerStatuses(t *testing.T) {
	tests := []struct {
		name       string
		checkErr   error
		critical   bool
		wantStatus HealthStatus
	}{
		{
			name:       "passing check is healthy",
			checkErr:   nil,
			critical:   true,
			wantStatus: HealthStatusHealthy,
		},
		{
			name:       "failing critical check is unhealthy",
			checkErr:   errors.New("store unreachable"),
			critical:   true,
			wantStatus: HealthStatusUnhealthy,
		},
		{
			name:       "failing non-critical check is degraded",
			checkErr:   errors.New("bus dropped messages"),
			critical:   false,
			wantStatus: HealthStatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := &HealthChecker{checks: make(map[string]*HealthCheck)}
			hc.RegisterCheck(&HealthCheck{
				Name:      "probe",
				CheckFunc: func(ctx context.Context) error { return tt.checkErr },
				Critical:  tt.critical,
			})

			resp := hc.Check(context.Background())
			assert.Equal(t, tt.wantStatus, resp.Status)

			status, ok := resp.Checks["probe"]
			require.True(t, ok, "expected probe check result")
			if tt.checkErr != nil {
				assert.Equal(t, tt.checkErr.Error(), status.Message)
			} else {
				assert.Equal(t, "OK", status.Message)
			}
		})
	}
}

func TestHealthCheckTimeout(t *testing.T) {
	hc := &HealthChecker{checks: make(map[string]*HealthCheck)}
	hc.RegisterCheck(&HealthCheck{
		Name: "slow",
		CheckFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		Timeout:  10 * time.Millisecond,
		Critical: true,
	})

	resp := hc.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, resp.Status)
}

func TestBusCheck(t *testing.T) {
	dropped := uint64(0)
	check := BusCheck(func() uint64 { return dropped }, 5)

	require.NoError(t, check.CheckFunc(context.Background()))

	dropped = 6
	assert.Error(t, check.CheckFunc(context.Background()))
}

func TestStoreCheck(t *testing.T) {
	check := StoreCheck(func(ctx context.Context) error { return nil })
	assert.True(t, check.Critical, "store check must be critical")
	assert.NoError(t, check.CheckFunc(context.Background()))
}
