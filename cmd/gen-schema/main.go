// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

// Command gen-schema writes the signlogin config file JSON Schema.
//
// With --check it compares the generated schema against the file at --out
// and exits non-zero when the file is missing or stale.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/VarshithSidhoju/sign-loginfull/internal/config"
)

const defaultOut = "schemas/config.schema.json"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gen-schema: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("gen-schema", pflag.ContinueOnError)
	out := flags.StringP("out", "o", defaultOut, "schema output path")
	check := flags.Bool("check", false, "fail if the file at --out is not up to date")
	flags.SetOutput(stdout)
	if err := flags.Parse(args); err != nil {
		return oops.Code("GEN_SCHEMA_FLAGS").Wrap(err)
	}

	schema, err := config.GenerateSchema()
	if err != nil {
		return oops.Code("GEN_SCHEMA_FAILED").Wrap(err)
	}
	schema = append(schema, '\n')

	if *check {
		current, readErr := os.ReadFile(*out) //nolint:gosec // path comes from the operator
		if errors.Is(readErr, fs.ErrNotExist) {
			return oops.Code("GEN_SCHEMA_STALE").With("path", *out).Errorf("%s does not exist", *out)
		}
		if readErr != nil {
			return oops.Code("GEN_SCHEMA_READ_FAILED").With("path", *out).Wrap(readErr)
		}
		if !bytes.Equal(current, schema) {
			return oops.Code("GEN_SCHEMA_STALE").With("path", *out).Errorf("%s is out of date, rerun gen-schema", *out)
		}
		fmt.Fprintf(stdout, "%s is up to date\n", *out)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o750); err != nil {
		return oops.Code("GEN_SCHEMA_WRITE_FAILED").With("path", *out).Wrap(err)
	}
	if err := os.WriteFile(*out, schema, 0o600); err != nil {
		return oops.Code("GEN_SCHEMA_WRITE_FAILED").With("path", *out).Wrap(err)
	}
	fmt.Fprintf(stdout, "Generated %s\n", *out)
	return nil
}
