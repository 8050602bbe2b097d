// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package httpapi_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VarshithSidhoju/sign-loginfull/internal/httpapi"
	"github.com/VarshithSidhoju/sign-loginfull/internal/logging"
	"github.com/VarshithSidhoju/sign-loginfull/pkg/errutil"
)

func TestServer_StartShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	srv := httpapi.NewServer("127.0.0.1:0", handler, logging.Discard())
	assert.Empty(t, srv.Addr())

	errCh, err := srv.Start()
	require.NoError(t, err)
	require.NotEmpty(t, srv.Addr())

	_, err = srv.Start()
	errutil.AssertErrorCode(t, err, "HTTPAPI_RUNNING")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	client.CloseIdleConnections()
	assert.Equal(t, "pong", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, srv.Shutdown(ctx), "second shutdown is a no-op")

	_, open := <-errCh
	assert.False(t, open, "error channel closes after a clean stop")
}

func TestServer_ListenFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	srv := httpapi.NewServer(busy.Addr().String(), http.NotFoundHandler(), logging.Discard())
	_, err = srv.Start()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "HTTPAPI_LISTEN_FAILED")
	errutil.AssertErrorContext(t, err, "addr", busy.Addr().String())
}
