// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package errutil

import (
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// T is the part of testing.TB the assertions use. *testing.T, *testing.B
// and ginkgo's GinkgoT() all satisfy it.
type T interface {
	require.TestingT
	Helper()
}

func asOops(t T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err is an oops error whose reported code
// (the deepest one in the chain) is code.
func AssertErrorCode(t T, err error, code string) {
	t.Helper()
	oopsErr := asOops(t, err)
	assert.Equal(t, code, oopsErr.Code(), "error: %v", err)
}

// AssertErrorContext asserts that err carries key with the given value.
func AssertErrorContext(t T, err error, key string, value any) {
	t.Helper()
	ctx := asOops(t, err).Context()
	if assert.Contains(t, ctx, key, "error: %v", err) {
		assert.Equal(t, value, ctx[key], "context key %q", key)
	}
}

// AssertNoErrorContext asserts that none of keys appear in err's context.
// Used to keep secrets such as passwords and tokens out of logged errors.
func AssertNoErrorContext(t T, err error, keys ...string) {
	t.Helper()
	ctx := asOops(t, err).Context()
	for _, key := range keys {
		assert.NotContains(t, ctx, key, "error: %v", err)
	}
}
