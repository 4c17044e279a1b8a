package execution

import (
	"context"
	"testing"

	"github.com/alejandrodnm/polyarb/internal/adapters/storage"
	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRisk(t *testing.T, cfg RiskConfig) (*RiskManager, *storage.SQLiteLedger) {
	t.Helper()
	ledger, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return NewRiskManager(ledger, cfg), ledger
}

func TestRiskManager_ThresholdTripsSwitch(t *testing.T) {
	ctx := context.Background()
	risk, _ := testRisk(t, RiskConfig{MaxConsecutiveFailures: 3})

	risk.ReportFailure(ctx, domain.RiskTimeout, "mkt-1", "no fills")
	risk.ReportFailure(ctx, domain.RiskRejection, "mkt-2", "rejected")
	assert.False(t, risk.IsHalted())

	risk.ReportFailure(ctx, domain.RiskDisconnect, "", "ws drop")
	assert.True(t, risk.IsHalted())
	assert.Contains(t, risk.State().HaltReason, "3 consecutive failures")
}

func TestRiskManager_SuccessResetsCounter(t *testing.T) {
	ctx := context.Background()
	risk, _ := testRisk(t, RiskConfig{MaxConsecutiveFailures: 3})

	risk.ReportFailure(ctx, domain.RiskTimeout, "mkt-1", "")
	risk.ReportFailure(ctx, domain.RiskTimeout, "mkt-1", "")
	risk.ReportSuccess()
	risk.ReportFailure(ctx, domain.RiskTimeout, "mkt-1", "")

	assert.False(t, risk.IsHalted())
	assert.Equal(t, 1, risk.State().ConsecutiveFailures)
}

func TestRiskManager_PartialFillImmediateHalt(t *testing.T) {
	ctx := context.Background()
	risk, _ := testRisk(t, RiskConfig{MaxConsecutiveFailures: 10, HaltOnPartialFill: true})

	risk.ReportFailure(ctx, domain.RiskPartialFill, "mkt-1", "single-leg exposure")
	assert.True(t, risk.IsHalted(), "partial fill dispara el switch sin esperar al umbral")
}

func TestRiskManager_HaltPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	risk, ledger := testRisk(t, RiskConfig{MaxConsecutiveFailures: 1})

	risk.ReportFailure(ctx, domain.RiskTimeout, "mkt-1", "no fills")
	require.True(t, risk.IsHalted())

	// Proceso nuevo sobre el mismo ledger.
	fresh := NewRiskManager(ledger, RiskConfig{MaxConsecutiveFailures: 1})
	require.NoError(t, fresh.Load(ctx))
	assert.True(t, fresh.IsHalted(), "el restart no resetea el kill switch")
}

func TestRiskManager_RefreshPicksUpExternalHalt(t *testing.T) {
	ctx := context.Background()
	running, ledger := testRisk(t, RiskConfig{MaxConsecutiveFailures: 3})
	require.NoError(t, running.Load(ctx))

	// Comando de operador desde un segundo proceso sobre el mismo ledger.
	operator := NewRiskManager(ledger, RiskConfig{MaxConsecutiveFailures: 3})
	require.NoError(t, operator.ManualHalt(ctx, "operator says stop"))

	// El manager en ejecución no lo ve hasta releer el ledger.
	assert.False(t, running.IsHalted())
	require.NoError(t, running.Refresh(ctx))
	assert.True(t, running.IsHalted())
	assert.Equal(t, "operator says stop", running.State().HaltReason)
}

func TestRiskManager_RefreshPicksUpExternalResume(t *testing.T) {
	ctx := context.Background()
	running, ledger := testRisk(t, RiskConfig{MaxConsecutiveFailures: 1})

	running.ReportFailure(ctx, domain.RiskTimeout, "mkt-1", "no fills")
	require.True(t, running.IsHalted())

	operator := NewRiskManager(ledger, RiskConfig{MaxConsecutiveFailures: 1})
	require.NoError(t, operator.Load(ctx))
	require.NoError(t, operator.Resume(ctx))

	require.NoError(t, running.Refresh(ctx))
	assert.False(t, running.IsHalted())
	assert.Equal(t, 0, running.State().ConsecutiveFailures)
}

func TestRiskManager_ManualHaltAndResume(t *testing.T) {
	ctx := context.Background()
	risk, ledger := testRisk(t, RiskConfig{MaxConsecutiveFailures: 3})

	require.NoError(t, risk.ManualHalt(ctx, "maintenance window"))
	assert.True(t, risk.IsHalted())
	assert.Equal(t, "maintenance window", risk.State().HaltReason)

	require.NoError(t, risk.Resume(ctx))
	assert.False(t, risk.IsHalted())
	assert.Equal(t, 0, risk.State().ConsecutiveFailures)

	// El resume también se ve desde un proceso nuevo.
	fresh := NewRiskManager(ledger, RiskConfig{MaxConsecutiveFailures: 3})
	require.NoError(t, fresh.Load(ctx))
	assert.False(t, fresh.IsHalted())
}
