package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kbase/bdfs/bdfstest"
	"github.com/kbase/bdfs/config"
)

// a stand-in portal that issues short-lived tokens to one user
type stubPortal struct {
	Server        *httptest.Server
	TokensIssued  atomic.Int32
	TokenLifetime atomic.Int64 // nanoseconds
	Unavailable   atomic.Bool
	// tokens issued up to this one are rejected
	Revoked atomic.Int32
}

func newStubPortal(t *testing.T) *stubPortal {
	p := &stubPortal{}
	p.TokenLifetime.Store(int64(time.Hour))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/info", func(w http.ResponseWriter, r *http.Request) {
		if p.Unavailable.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(Info{
			Name:     "stub",
			Version:  "1.0.0",
			Features: []string{FeatureBigDataFileShares},
		})
	})
	mux.HandleFunc("POST /api/v1/tokens", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Username, Password string
		}
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "analyst" || creds.Password != "s3cr3t" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail": "invalid username or password"}`))
			return
		}
		n := p.TokensIssued.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"token":   fmt.Sprintf("token-%d", n),
			"expires": time.Now().Add(time.Duration(p.TokenLifetime.Load())),
		})
	})
	mux.HandleFunc("GET /api/v1/whoami", func(w http.ResponseWriter, r *http.Request) {
		var n int32
		if _, err := fmt.Sscanf(r.Header.Get("Authorization"), "Bearer token-%d", &n); err != nil ||
			n <= p.Revoked.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail": "invalid token"}`))
			return
		}
		w.Write([]byte(r.Header.Get("Authorization")))
	})
	mux.HandleFunc("POST /api/v1/echo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("DELETE /api/v1/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "1" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "no such thing"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

func TestNewSessionRejectsBadURLs(t *testing.T) {
	assert := assert.New(t)
	_, err := NewSession("ftp://portal.example.com", "analyst", "s3cr3t", time.Second)
	assert.NotNil(err)
	_, err = NewSession("https://", "analyst", "s3cr3t", time.Second)
	assert.NotNil(err)
	s, err := NewSession("https://portal.example.com/", "analyst", "s3cr3t", time.Second)
	assert.Nil(err)
	assert.Equal("https://portal.example.com", s.URL())
	assert.Equal("analyst", s.User())
}

func TestNewSessionFromConfig(t *testing.T) {
	assert := assert.New(t)
	err := config.Init([]byte(`
portal:
  url: https://portal.example.com
  username: analyst
  password: s3cr3t
  timeout: 10
`))
	assert.Nil(err)
	s, err := NewSessionFromConfig()
	assert.Nil(err)
	assert.Equal("https://portal.example.com", s.URL())
	assert.Equal(10*time.Second, s.Client.Timeout)
}

func TestSupportsBigDataFileShares(t *testing.T) {
	assert := assert.New(t)
	p := newStubPortal(t)
	s, err := NewSession(p.Server.URL, "analyst", "s3cr3t", time.Second)
	assert.Nil(err)

	supported, err := s.SupportsBigDataFileShares(context.Background())
	assert.Nil(err)
	assert.True(supported)
	assert.Equal(int32(0), p.TokensIssued.Load()) // info needs no token

	p.Unavailable.Store(true)
	_, err = s.SupportsBigDataFileShares(context.Background())
	var unavailable *UnavailableError
	assert.True(errors.As(err, &unavailable))
}

func TestConnectWithBadCredentials(t *testing.T) {
	assert := assert.New(t)
	p := newStubPortal(t)
	s, err := NewSession(p.Server.URL, "analyst", "wrong", time.Second)
	assert.Nil(err)

	err = s.Connect(context.Background())
	var unauthorized *UnauthorizedError
	assert.True(errors.As(err, &unauthorized))
	assert.Equal("invalid username or password", unauthorized.Message)

	// authorized requests fail the same way
	_, err = s.Get(context.Background(), "whoami", nil)
	assert.True(errors.As(err, &unauthorized))
}

func TestTokenIsReusedUntilExpired(t *testing.T) {
	assert := assert.New(t)
	p := newStubPortal(t)
	s, err := NewSession(p.Server.URL, "analyst", "s3cr3t", time.Second)
	assert.Nil(err)

	for i := 0; i < 3; i++ {
		body, err := s.Get(context.Background(), "whoami", nil)
		assert.Nil(err)
		assert.Equal("Bearer token-1", string(body))
	}
	assert.Equal(int32(1), p.TokensIssued.Load())

	// tokens that expire within a minute are renewed on every request
	p.TokenLifetime.Store(int64(30 * time.Second))
	assert.Nil(s.Connect(context.Background()))
	_, err = s.Get(context.Background(), "whoami", nil)
	assert.Nil(err)
	assert.Equal(int32(3), p.TokensIssued.Load())
}

func TestRejectedTokenIsRenewed(t *testing.T) {
	assert := assert.New(t)
	p := newStubPortal(t)
	s, err := NewSession(p.Server.URL, "analyst", "s3cr3t", time.Second)
	assert.Nil(err)
	assert.Nil(s.Connect(context.Background()))

	// the portal forgets token-1 (e.g. after a restart with a new key)
	p.Revoked.Store(1)
	_, err = s.Get(context.Background(), "whoami", nil)
	var unauthorized *UnauthorizedError
	assert.True(errors.As(err, &unauthorized))
	assert.Equal("invalid token", unauthorized.Message)

	body, err := s.Get(context.Background(), "whoami", nil)
	assert.Nil(err)
	assert.Equal("Bearer token-2", string(body))
	assert.Equal(int32(2), p.TokensIssued.Load())
}

func TestPostAndDelete(t *testing.T) {
	assert := assert.New(t)
	p := newStubPortal(t)
	s, err := NewSession(p.Server.URL, "analyst", "s3cr3t", time.Second)
	assert.Nil(err)

	body, err := s.Post(context.Background(), "echo", map[string]string{"name": "hazards"})
	assert.Nil(err)
	assert.JSONEq(`{"name": "hazards"}`, string(body))

	assert.Nil(s.Delete(context.Background(), "things/1"))

	err = s.Delete(context.Background(), "things/2")
	var respErr *ResponseError
	assert.True(errors.As(err, &respErr))
	assert.Equal(http.StatusNotFound, respErr.StatusCode)
	assert.Equal("no such thing", respErr.Message)
	assert.Equal("DELETE /api/v1/things/2 failed (404): no such thing", respErr.Error())
}

func TestDowngradedRedirectIsRefused(t *testing.T) {
	assert := assert.New(t)
	client := SecureHttpClient(time.Second)
	via := []*http.Request{httptest.NewRequest(http.MethodGet, "https://portal.example.com/api/v1/info", nil)}
	next := httptest.NewRequest(http.MethodGet, "http://portal.example.com/api/v1/info", nil)
	err := client.CheckRedirect(next, via)
	var downgraded *DowngradedRedirectError
	assert.True(errors.As(err, &downgraded))
	assert.Equal("portal.example.com/api/v1/info", downgraded.Endpoint)
}

func TestErrorMessages(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("Unable to authorize user 'analyst' for portal 'https://p': denied",
		UnauthorizedError{Portal: "https://p", User: "analyst", Message: "denied"}.Error())
	assert.Equal("Cannot reach portal 'https://p': unavailable",
		UnavailableError{Portal: "https://p"}.Error())
	assert.Equal("GET /api/v1/x failed (500)",
		ResponseError{Method: "GET", Resource: "/api/v1/x", StatusCode: 500}.Error())
}

func TestMain(m *testing.M) {
	if os.Getenv("BDFS_DEBUG") != "" {
		bdfstest.EnableDebugLogging()
	}
	os.Exit(m.Run())
}
