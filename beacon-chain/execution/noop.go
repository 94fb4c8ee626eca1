package execution

import "context"

// NoopExecutor is the PayloadExecutor used before a real Engine API
// endpoint is configured: every payload reports Valid so the rest of the
// orchestrator can run against a solo devnet without a paired execution
// client.
type NoopExecutor struct{}

func (NoopExecutor) ExecutePayload(ctx context.Context, blockHash [32]byte) (PayloadStatus, error) {
	return Valid, nil
}

func (NoopExecutor) ForkchoiceUpdated(ctx context.Context, head, safe, finalized [32]byte) error {
	return nil
}
