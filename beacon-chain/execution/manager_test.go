package execution

import (
	"context"
	"sync"
	"testing"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	mu          sync.Mutex
	executeCalls int
	status      PayloadStatus
	fcuErr      error
}

func (f *fakeExecutor) ExecutePayload(ctx context.Context, blockHash [32]byte) (PayloadStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executeCalls++
	return f.status, nil
}

func (f *fakeExecutor) ForkchoiceUpdated(ctx context.Context, head, safe, finalized [32]byte) error {
	return f.fcuErr
}

func TestNotifyNewPayload_CachesValidVerdict(t *testing.T) {
	executor := &fakeExecutor{status: Valid}
	m := NewManager(executor)

	hash := [32]byte{1}
	status, err := m.NotifyNewPayload(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, Valid, status)

	status, err = m.NotifyNewPayload(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, Valid, status)

	executor.mu.Lock()
	defer executor.mu.Unlock()
	require.Equal(t, 1, executor.executeCalls, "second call for the same hash should be served from cache")
}

func TestNotifyNewPayload_SetsSyncedAndExecutionValid(t *testing.T) {
	executor := &fakeExecutor{status: Invalid}
	m := NewManager(executor)
	require.False(t, m.SyncedAndExecutionValid())

	_, err := m.NotifyNewPayload(context.Background(), [32]byte{2})
	require.NoError(t, err)
	require.False(t, m.SyncedAndExecutionValid())

	executor.status = Valid
	_, err = m.NotifyNewPayload(context.Background(), [32]byte{3})
	require.NoError(t, err)
	require.True(t, m.SyncedAndExecutionValid())
}

func TestNotifyForkchoiceUpdated_ReturnsPayloadID(t *testing.T) {
	executor := &fakeExecutor{}
	m := NewManager(executor)

	id, err := m.NotifyForkchoiceUpdated(context.Background(), forktypes.Root{1}, forktypes.Root{1}, forktypes.Root{0})
	require.NoError(t, err)
	require.NotEmpty(t, id)
}
