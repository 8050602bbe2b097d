// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by repositories when a write would violate
// the case-insensitive email uniqueness constraint.
var ErrEmailTaken = errors.New("email already registered")

// Kind classifies an error for callers at the process boundary.
type Kind int

// Error kinds. KindInternal covers everything that is not a caller mistake.
const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindToken
	KindNotFound
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindToken:
		return "token"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error codes surfaced by this package.
const (
	CodeInvalidName        = "AUTH_INVALID_NAME"
	CodeInvalidEmail       = "AUTH_INVALID_EMAIL"
	CodeInvalidPassword    = "AUTH_INVALID_PASSWORD"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"

	CodeTokenMissing          = "TOKEN_MISSING"
	CodeTokenMalformed        = "TOKEN_MALFORMED"
	CodeTokenSignatureInvalid = "TOKEN_SIGNATURE_INVALID"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeTokenInvalidSubject   = "TOKEN_INVALID_SUBJECT"
)

var kindByCode = map[string]Kind{
	CodeInvalidName:        KindValidation,
	CodeInvalidEmail:       KindValidation,
	CodeInvalidPassword:    KindValidation,
	CodeEmailTaken:         KindValidation,
	CodeInvalidCredentials: KindAuth,
	CodeUserNotFound:       KindNotFound,
}

// ErrorCode returns the oops code attached to err, or "" if there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := oopsErr.Code()
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}

// KindOf maps an error to its Kind using its oops code.
// Errors without a recognised code are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	code := ErrorCode(err)
	if kind, ok := kindByCode[code]; ok {
		return kind
	}
	if strings.HasPrefix(code, "TOKEN_") {
		return KindToken
	}
	return KindInternal
}
