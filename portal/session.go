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

// Package portal manages authenticated sessions with a portal that hosts big
// data file share datastores.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kbase/bdfs/config"
)

// the feature a portal advertises when it supports big data file shares
const FeatureBigDataFileShares = "bigDataFileShares"

// the prefix for all portal API resources
const apiPrefix = "/api/v1/"

// information a portal reports about itself
type Info struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Features []string `json:"features"`
}

type credential struct {
	User, Password string
}

type authorization struct {
	// bearer token issued by the portal
	Token string
	// time at which the token expires
	ExpirationTime time.Time
}

// A Session holds a portal's URL and a user's credentials, and performs
// authorized requests on behalf of that user. A Session may be shared by
// several goroutines.
type Session struct {
	// HTTP client used for all requests
	Client http.Client
	// portal base URL
	baseURL    *url.URL
	credential credential

	mu   sync.Mutex
	auth authorization
}

// creates a session for the portal with the given URL, authenticating with
// the given username and password (lazily, on the first authorized request)
func NewSession(portalURL, username, password string, timeout time.Duration) (*Session, error) {
	u, err := url.Parse(strings.TrimSuffix(portalURL, "/"))
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("Invalid portal URL: %s", portalURL)
	}
	return &Session{
		Client:  SecureHttpClient(timeout),
		baseURL: u,
		credential: credential{
			User:     username,
			Password: password,
		},
	}, nil
}

// creates a session using the portal parameters in the configuration
func NewSessionFromConfig() (*Session, error) {
	if config.Portal.URL == "" {
		return nil, fmt.Errorf("No portal URL was given in the configuration")
	}
	return NewSession(config.Portal.URL, config.Portal.Username,
		config.Portal.Password, time.Duration(config.Portal.Timeout)*time.Second)
}

// returns the portal's base URL
func (s *Session) URL() string {
	return s.baseURL.String()
}

// returns the name of the session's user
func (s *Session) User() string {
	return s.credential.User
}

// authenticates with the portal, fetching a fresh access token
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, err := s.getAccessToken(ctx)
	if err != nil {
		return err
	}
	s.auth = auth
	return nil
}

// fetches information about the portal (no authorization required)
func (s *Session) Info(ctx context.Context) (Info, error) {
	var info Info
	req, err := s.newRequest(ctx, http.MethodGet, "info", nil)
	if err != nil {
		return info, err
	}
	data, err := s.do(req)
	if err != nil {
		return info, err
	}
	err = json.Unmarshal(data, &info)
	return info, err
}

// returns true if the portal supports big data file share datastores
func (s *Session) SupportsBigDataFileShares(ctx context.Context) (bool, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(info.Features, FeatureBigDataFileShares), nil
}

// performs an authorized GET request on the given resource (relative to the
// portal's API root), returning the response body
func (s *Session) Get(ctx context.Context, resource string, values url.Values) ([]byte, error) {
	req, err := s.newAuthorizedRequest(ctx, http.MethodGet, resource, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = values.Encode()
	return s.do(req)
}

// performs an authorized POST request on the given resource, sending the
// given body (if any) as JSON and returning the response body
func (s *Session) Post(ctx context.Context, resource string, body any) ([]byte, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(data)
	}
	req, err := s.newAuthorizedRequest(ctx, http.MethodPost, resource, payload)
	if err != nil {
		return nil, err
	}
	return s.do(req)
}

// performs an authorized DELETE request on the given resource
func (s *Session) Delete(ctx context.Context, resource string) error {
	req, err := s.newAuthorizedRequest(ctx, http.MethodDelete, resource, nil)
	if err != nil {
		return err
	}
	_, err = s.do(req)
	return err
}

// fetches an access token from the portal using the session's credential
func (s *Session) getAccessToken(ctx context.Context) (authorization, error) {
	var auth authorization
	data, err := json.Marshal(map[string]string{
		"username": s.credential.User,
		"password": s.credential.Password,
	})
	if err != nil {
		return auth, err
	}
	req, err := s.newRequest(ctx, http.MethodPost, "tokens", bytes.NewReader(data))
	if err != nil {
		return auth, err
	}

	slog.Debug(fmt.Sprintf("Requesting access token for %s from %s", s.credential.User, s.baseURL))
	resp, err := s.Client.Do(req)
	if err != nil {
		return auth, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return auth, err
	}

	switch resp.StatusCode {
	case 200, 201:
		type accessTokenResponse struct {
			Token   string    `json:"token"`
			Expires time.Time `json:"expires"`
		}
		var tokenResponse accessTokenResponse
		if err := json.Unmarshal(body, &tokenResponse); err != nil {
			return auth, err
		}
		// renew a minute early for "slop"
		return authorization{
			Token:          tokenResponse.Token,
			ExpirationTime: tokenResponse.Expires.Add(-time.Minute),
		}, nil
	case 503:
		return auth, &UnavailableError{
			Portal: s.baseURL.String(),
		}
	default:
		return auth, &UnauthorizedError{
			Portal:  s.baseURL.String(),
			User:    s.credential.User,
			Message: errorDetail(body, resp.Status),
		}
	}
}

// checks our access token for expiration and renews if necessary, returning
// the current token
func (s *Session) renewAccessTokenIfExpired(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auth.Token == "" || time.Now().After(s.auth.ExpirationTime) {
		auth, err := s.getAccessToken(ctx)
		if err != nil {
			return "", err
		}
		s.auth = auth
	}
	return s.auth.Token, nil
}

// discards our access token if it's the given (rejected) one
func (s *Session) dropAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != "" && s.auth.Token == token {
		s.auth = authorization{}
	}
}

// creates a request for the given API resource
func (s *Session) newRequest(ctx context.Context, method, resource string,
	body io.Reader) (*http.Request, error) {
	u := *s.baseURL
	u.Path += apiPrefix + strings.TrimPrefix(resource, "/")
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// creates a request for the given API resource with an authorization header
func (s *Session) newAuthorizedRequest(ctx context.Context, method, resource string,
	body io.Reader) (*http.Request, error) {
	token, err := s.renewAccessTokenIfExpired(ctx)
	if err != nil {
		return nil, err
	}
	req, err := s.newRequest(ctx, method, resource, body)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req, nil
}

// sends a request and returns its response body, translating unsuccessful
// statuses into errors
func (s *Session) do(req *http.Request) ([]byte, error) {
	slog.Debug(fmt.Sprintf("%s: %s", req.Method, req.URL.String()))
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case 200, 201, 202, 204:
		return body, nil
	case 401:
		// the portal no longer honors our token, so fetch a new one next time
		s.dropAccessToken(strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer "))
		return nil, &UnauthorizedError{
			Portal:  s.baseURL.String(),
			User:    s.credential.User,
			Message: errorDetail(body, resp.Status),
		}
	case 503:
		return nil, &UnavailableError{
			Portal: s.baseURL.String(),
		}
	default:
		return nil, &ResponseError{
			Method:     req.Method,
			Resource:   req.URL.Path,
			StatusCode: resp.StatusCode,
			Message:    errorDetail(body, ""),
		}
	}
}

// extracts the "detail" of an error response body, falling back to the
// given string
func errorDetail(body []byte, fallback string) string {
	type errorResponse struct {
		Detail string `json:"detail"`
	}
	var errResponse errorResponse
	if err := json.Unmarshal(body, &errResponse); err == nil && errResponse.Detail != "" {
		return errResponse.Detail
	}
	return fallback
}
