// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// prompter reads answers from the command's input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// line prints label and reads one trimmed line. A final line without a
// newline is accepted.
func (p *prompter) line(label string) (string, error) {
	if _, err := fmt.Fprint(p.out, label+": "); err != nil {
		return "", oops.Code("PROMPT_FAILED").Wrap(err)
	}
	text, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && text != "") {
		return "", oops.Code("PROMPT_FAILED").With("prompt", label).Wrap(err)
	}
	return strings.TrimSpace(text), nil
}

// password reads without echo from a terminal, or a plain line otherwise
// so passwords can be piped in.
func (p *prompter) password(label string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !isTerminal(fd) {
		pw, err := p.line(label)
		if err != nil {
			return "", err
		}
		return pw, nil
	}

	if _, err := fmt.Fprint(p.out, label+": "); err != nil {
		return "", oops.Code("PROMPT_FAILED").Wrap(err)
	}
	pw, err := readPassword(fd)
	_, _ = fmt.Fprintln(p.out)
	if err != nil {
		return "", oops.Code("PROMPT_FAILED").With("prompt", label).Wrap(err)
	}
	return string(pw), nil
}

// valueOr returns v, or prompts for it when empty.
func (p *prompter) valueOr(v, label string) (string, error) {
	if strings.TrimSpace(v) != "" {
		return v, nil
	}
	return p.line(label)
}
