// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VarshithSidhoju/sign-loginfull/pkg/errutil"
)

type flakyPinger struct {
	failures int32
	calls    atomic.Int32
}

func (p *flakyPinger) Ping(context.Context) error {
	if p.calls.Add(1) <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), PoolConfig{}, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_URL_MISSING")
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), PoolConfig{URL: "postgres://%zz"}, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_URL_INVALID")
}

func TestWaitForDatabase_RetriesUntilReady(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	p := &flakyPinger{failures: 2}

	err := waitForDatabase(context.Background(), p, 10*time.Second, logger)
	require.NoError(t, err)
	assert.Equal(t, int32(3), p.calls.Load())
	assert.Contains(t, logs.String(), "database not ready")
}

func TestWaitForDatabase_GivesUp(t *testing.T) {
	p := &flakyPinger{failures: 1 << 20}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	err := waitForDatabase(context.Background(), p, 600*time.Millisecond, logger)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_UNAVAILABLE")
	assert.GreaterOrEqual(t, p.calls.Load(), int32(2))
}

func TestWaitForDatabase_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &flakyPinger{failures: 1 << 20}

	err := waitForDatabase(ctx, p, time.Minute, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.Error(t, err)
}

func TestReadiness(t *testing.T) {
	assert.True(t, Readiness(&flakyPinger{}, time.Second)())
	assert.False(t, Readiness(&flakyPinger{failures: 1}, time.Second)())
}
