package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/checkpoint"
	"github.com/codeready-toolchain/truthgraph/pkg/config"
	"github.com/codeready-toolchain/truthgraph/test/dbtest"
	"github.com/stretchr/testify/assert"
)

func testConfig() config.CheckpointConfig {
	return config.CheckpointConfig{
		Backend:   config.CheckpointBackendPostgres,
		TTL:       time.Hour,
		TableName: "checkpoint_threads",
	}
}

func TestResolve_EmptyIDAllocatesNewThread(t *testing.T) {
	db := dbtest.NewDB(t)
	mgr := checkpoint.New(db, testConfig())

	res := mgr.Resolve(context.Background(), "", false)

	assert.NotEmpty(t, res.ThreadID)
	assert.False(t, res.Resumed)
	assert.False(t, res.Expired)
}

func TestResolve_ResumeKnownThreadSucceeds(t *testing.T) {
	db := dbtest.NewDB(t)
	mgr := checkpoint.New(db, testConfig())
	ctx := context.Background()

	first := mgr.Resolve(ctx, "", false)
	second := mgr.Resolve(ctx, first.ThreadID, true)

	assert.Equal(t, first.ThreadID, second.ThreadID)
	assert.True(t, second.Resumed)
	assert.False(t, second.Expired)
}

func TestResolve_ResumeUnknownThreadAllocatesFreshAndMarksExpired(t *testing.T) {
	db := dbtest.NewDB(t)
	mgr := checkpoint.New(db, testConfig())

	res := mgr.Resolve(context.Background(), "no-such-thread", true)

	assert.NotEqual(t, "no-such-thread", res.ThreadID)
	assert.True(t, res.Expired)
}

func TestResolve_BackendNoneNeverTouchesStorage(t *testing.T) {
	mgr := checkpoint.New(nil, config.CheckpointConfig{Backend: config.CheckpointBackendNone})

	res := mgr.Resolve(context.Background(), "", false)

	assert.NotEmpty(t, res.ThreadID)
	assert.False(t, res.Resumed)
}

func TestStartStop_CronSweepIsIdempotentAndStoppable(t *testing.T) {
	mgr := checkpoint.New(nil, config.CheckpointConfig{Backend: config.CheckpointBackendNone})

	mgr.Start(context.Background())
	mgr.Start(context.Background())
	mgr.Stop()
}
