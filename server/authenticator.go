// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package server

import (
	"crypto/subtle"
	"log/slog"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

// This type exchanges user credentials for access tokens and resolves access
// tokens to users. Tokens are fernet-encrypted usernames, so they expire
// after a fixed lifetime and can't be forged without the service's secret.
type authenticator struct {
	key      *fernet.Key
	users    map[string]string // passwords by username
	lifetime time.Duration
}

// creates an authenticator for the given users, using the given fernet key
// (base64-encoded) or a freshly generated one if the key is blank
func newAuthenticator(secret string, users map[string]string,
	lifetime time.Duration) (*authenticator, error) {
	var key *fernet.Key
	if secret == "" {
		slog.Info("No secret was provided; generating a key for access tokens")
		key = new(fernet.Key)
		if err := key.Generate(); err != nil {
			return nil, err
		}
	} else {
		var err error
		key, err = fernet.DecodeKey(secret)
		if err != nil {
			return nil, err
		}
	}
	return &authenticator{
		key:      key,
		users:    users,
		lifetime: lifetime,
	}, nil
}

// issues an access token for the given credentials, returning the token and
// the time at which it expires
func (a *authenticator) IssueToken(username, password string) (string, time.Time, error) {
	expected, found := a.users[username]
	if !found || subtle.ConstantTimeCompare([]byte(expected), []byte(password)) != 1 {
		return "", time.Time{}, &UnauthorizedError{Message: "invalid username or password"}
	}
	expires := time.Now().Add(a.lifetime)
	token, err := fernet.EncryptAndSign([]byte(username), a.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return string(token), expires, nil
}

// returns the user for a valid, unexpired access token
func (a *authenticator) User(token string) (string, error) {
	username := fernet.VerifyAndDecrypt([]byte(token), a.lifetime, []*fernet.Key{a.key})
	if username == nil {
		return "", &UnauthorizedError{Message: "invalid or expired access token"}
	}
	if _, found := a.users[string(username)]; !found {
		return "", &UnauthorizedError{Message: "unknown user"}
	}
	return string(username), nil
}

// extracts the user from a "Bearer" authorization header
func (a *authenticator) Authorize(authorizationHeader string) (string, error) {
	token, found := strings.CutPrefix(authorizationHeader, "Bearer ")
	if !found {
		return "", &UnauthorizedError{Message: "invalid authorization header"}
	}
	return a.User(strings.TrimSpace(token))
}
