// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VarshithSidhoju/sign-loginfull/pkg/errutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signlogin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigShow(t *testing.T) {
	isolate(t)
	t.Setenv("SIGNLOGIN_AUTH__JWT_SECRET", "do-not-print-me-please")
	path := writeConfig(t, "server:\n  addr: \":7000\"\n")

	res := execute(context.Background(), "", "--config", path, "config", "show", "--log-format", "text")
	require.NoError(t, res.runErr)
	assert.Contains(t, res.out, "7000")
	assert.Contains(t, res.out, "format: text")
	assert.NotContains(t, res.out, "do-not-print-me-please")
}

func TestConfigSchema(t *testing.T) {
	res := execute(context.Background(), "", "config", "schema")
	require.NoError(t, res.runErr)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.out), &doc))
	assert.Contains(t, doc, "properties")
}

func TestConfigValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "valid", body: "server:\n  mode: debug\nlog:\n  format: text\n"},
		{name: "unknown key", body: "sever:\n  mode: debug\n", code: "CONFIG_SCHEMA_VIOLATION"},
		{name: "bad enum", body: "server:\n  mode: prod\n", code: "CONFIG_SCHEMA_VIOLATION"},
		{name: "semantic check", body: "client:\n  server_url: ftp://x\n", code: "CONFIG_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			res := execute(context.Background(), "", "config", "validate", path)
			if tt.code == "" {
				require.NoError(t, res.runErr)
				assert.Contains(t, res.out, "is valid")
				return
			}
			require.Error(t, res.runErr)
			errutil.AssertErrorCode(t, res.runErr, tt.code)
			errutil.AssertErrorContext(t, res.runErr, "path", path)
		})
	}

	res := execute(context.Background(), "", "config", "validate", "/no/such/file.yaml")
	errutil.AssertErrorCode(t, res.runErr, "CONFIG_FILE_MISSING")
}
