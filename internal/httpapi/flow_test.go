// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package httpapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
	"github.com/VarshithSidhoju/sign-loginfull/internal/auth/memory"
)

func newFlowRouter(t *testing.T) *router {
	t.Helper()
	tokens := newTokens(t)
	svc, err := auth.NewService(memory.NewUserRepository(), auth.NewArgon2idHasher(), tokens)
	require.NoError(t, err)
	return newRouter(t, svc, tokens)
}

func TestFlow_RegisterLoginProfile(t *testing.T) {
	r := newFlowRouter(t)
	const password = "correct-horse"

	resp := r.do(http.MethodPost, "/api/auth/register",
		`{"name":"  Ada Lovelace ","email":"Ada@Example.com","password":"`+password+`"}`)
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	assert.NotContains(t, string(resp.body), password)
	assert.NotContains(t, string(resp.body), "argon2")

	var registered auth.AuthResult
	resp.json(t, &registered)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "Ada Lovelace", registered.User.Name)
	assert.Equal(t, "ada@example.com", registered.User.Email)

	resp = r.do(http.MethodPost, "/api/auth/register",
		`{"name":"Imposter","email":"ADA@example.com","password":"whatever1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "email is already registered", resp.message(t))

	resp = r.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	wrongPassword := resp.message(t)

	resp = r.do(http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, wrongPassword, resp.message(t), "unknown email and wrong password look the same")

	resp = r.do(http.MethodPost, "/api/auth/login", `{"email":" ADA@example.com ","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, resp.status)
	var loggedIn auth.AuthResult
	resp.json(t, &loggedIn)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	resp = r.do(http.MethodGet, "/api/users/profile", "", bearer(loggedIn.Token)...)
	require.Equal(t, http.StatusOK, resp.status)
	var profile auth.Profile
	resp.json(t, &profile)
	assert.Equal(t, registered.User.ID, profile.ID)
	assert.NotContains(t, string(resp.body), "password")

	resp = r.do(http.MethodPut, "/api/users/profile", `{"name":"Countess"}`, bearer(loggedIn.Token)...)
	require.Equal(t, http.StatusOK, resp.status)
	resp.json(t, &profile)
	assert.Equal(t, "Countess", profile.Name)
	assert.Equal(t, "ada@example.com", profile.Email)

	resp = r.do(http.MethodPut, "/api/users/profile", `{"password":"new-password"}`, bearer(loggedIn.Token)...)
	require.Equal(t, http.StatusOK, resp.status)

	resp = r.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"`+password+`"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.status, "old password stops working")
	resp = r.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"new-password"}`)
	assert.Equal(t, http.StatusOK, resp.status)
}

func TestFlow_ListUsers(t *testing.T) {
	r := newFlowRouter(t)

	var token string
	for _, body := range []string{
		`{"name":"First","email":"first@example.com","password":"secret1"}`,
		`{"name":"Second","email":"second@example.com","password":"secret2"}`,
	} {
		resp := r.do(http.MethodPost, "/api/auth/register", body)
		require.Equal(t, http.StatusCreated, resp.status)
		var res auth.AuthResult
		resp.json(t, &res)
		token = res.Token
	}

	resp := r.do(http.MethodGet, "/api/users", "", bearer(token)...)
	require.Equal(t, http.StatusOK, resp.status)
	var users []auth.Profile
	resp.json(t, &users)
	require.Len(t, users, 2)
	assert.Equal(t, "first@example.com", users[0].Email)
	assert.Equal(t, "second@example.com", users[1].Email)
	assert.NotContains(t, string(resp.body), "secret")
}

func TestFlow_ValidationMessages(t *testing.T) {
	r := newFlowRouter(t)

	tests := map[string]string{
		`{"name":"A","email":"not-an-email","password":"secret1"}`:     "email is not a valid address",
		`{"name":"A","email":"a@example.com","password":"short"}`:      "password must be at least 6 characters",
		`{"name":"   ","email":"a@example.com","password":"secret1"}`:  "name cannot be empty",
		`{"name":"A","email":"A <a@example.com>","password":"secret1"}`: "email is not a valid address",
	}
	for body, want := range tests {
		resp := r.do(http.MethodPost, "/api/auth/register", body)
		assert.Equal(t, http.StatusBadRequest, resp.status, body)
		assert.Equal(t, want, resp.message(t), body)
	}
}
