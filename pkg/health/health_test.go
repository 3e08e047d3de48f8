package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIndexerCheckerHealthyAfterRecentSuccess(t *testing.T) {
	status := NewIndexerStatus()
	status.RecordSuccess(3)

	checker := NewIndexerChecker(status, time.Minute)
	result := checker.Check(context.Background())

	require.True(t, result.Healthy)
}

func TestIndexerCheckerUnhealthyWhenStale(t *testing.T) {
	status := &IndexerStatus{lastSuccessAt: time.Now().Add(-time.Hour)}

	checker := NewIndexerChecker(status, time.Minute)
	result := checker.Check(context.Background())

	require.False(t, result.Healthy)
}

func TestIndexerCheckerUnhealthyOnRecordedError(t *testing.T) {
	status := NewIndexerStatus()
	status.RecordError(errors.New("poll failed"))

	checker := NewIndexerChecker(status, time.Minute)
	result := checker.Check(context.Background())

	require.False(t, result.Healthy)
	require.Contains(t, result.Message, "poll failed")
}
