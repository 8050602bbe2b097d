// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

//go:build tools

// Package main pins the ginkgo runner and the test-only libraries that
// non-default build tags pull in, so `go mod tidy` keeps them.
//
//	go run github.com/onsi/ginkgo/v2/ginkgo -tags integration ./...
package main

import (
	// Integration suite runner.
	_ "github.com/onsi/ginkgo/v2/ginkgo"

	// Postgres container for the integration suites.
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"

	// Unit test doubles and leak checks.
	_ "github.com/pashagolub/pgxmock/v4"
	_ "go.uber.org/goleak"
)
