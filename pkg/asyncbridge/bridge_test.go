package asyncbridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/codeready-toolchain/truthgraph/pkg/asyncbridge"
	"github.com/stretchr/testify/assert"
)

func TestRunInSync_ReturnsValueOnSuccess(t *testing.T) {
	v, err := asyncbridge.RunInSync(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRunInSync_PropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	_, err := asyncbridge.RunInSync(context.Background(), func(ctx context.Context) (int, error) {
		return 0, wantErr
	})

	assert.ErrorIs(t, err, wantErr)
}

func TestRunInSync_RecoversPanicAsError(t *testing.T) {
	_, err := asyncbridge.RunInSync(context.Background(), func(ctx context.Context) (int, error) {
		panic("something broke")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "something broke")
}

func TestRunInSync_ContextCancellationReturnsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	cancel() // pre-cancelled: select must take the ctx.Done() branch immediately

	_, err := asyncbridge.RunInSync(ctx, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}
