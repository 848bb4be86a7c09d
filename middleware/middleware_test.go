// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/taskflow/models"
)

func TestWithLogging(t *testing.T) {
	handlerCalled := false
	testHandler := func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("success"))
	}

	req := httptest.NewRequest("GET", "/test-path", nil)
	w := httptest.NewRecorder()

	WithLogging(testHandler)(w, req)

	if !handlerCalled {
		t.Error("Expected handler to be called")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if w.Body.String() != "success" {
		t.Errorf("Expected body 'success', got '%s'", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a generated X-Request-ID header")
	}
}

func TestWithLogging_KeepsIncomingRequestID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()

	WithLogging(func(w http.ResponseWriter, r *http.Request) {})(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJSONResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		data       interface{}
		expected   string
	}{
		{
			name:       "simple map",
			statusCode: http.StatusOK,
			data:       map[string]string{"status": "ok"},
			expected:   `{"status":"ok"}`,
		},
		{
			name:       "availability",
			statusCode: http.StatusOK,
			data:       models.UsernameAvailability{Username: "alice", Available: true},
			expected:   `{"username":"alice","available":true}`,
		},
		{
			name:       "empty list",
			statusCode: http.StatusOK,
			data:       []models.Todo{},
			expected:   `[]`,
		},
		{
			name:       "created",
			statusCode: http.StatusCreated,
			data:       models.TokenResponse{Token: "k", UserID: 7, Username: "bob"},
			expected:   `{"token":"k","user_id":7,"username":"bob"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			JSONResponse(w, tc.statusCode, tc.data)

			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}
			if body := strings.TrimSpace(w.Body.String()); body != tc.expected {
				t.Errorf("Expected body '%s', got '%s'", tc.expected, body)
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	testCases := []struct {
		name          string
		statusCode    int
		message       string
		expectedError string
		wantChallenge bool
	}{
		{"bad request", http.StatusBadRequest, "username and password required", "Bad Request", false},
		{"unauthorized", http.StatusUnauthorized, "Invalid token.", "Unauthorized", true},
		{"not found", http.StatusNotFound, "Not found.", "Not Found", false},
		{"throttled", http.StatusTooManyRequests, "Request was throttled.", "Too Many Requests", false},
		{"internal error", http.StatusInternalServerError, "Database error", "Internal Server Error", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			ErrorResponse(w, tc.statusCode, tc.message)

			assert.Equal(t, tc.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			if tc.wantChallenge {
				assert.Equal(t, "Token", w.Header().Get("WWW-Authenticate"))
			} else {
				assert.Empty(t, w.Header().Get("WWW-Authenticate"))
			}

			var resp models.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tc.expectedError, resp.Error)
			assert.Equal(t, tc.message, resp.Message)
		})
	}
}

func TestParseJSONBody(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"title":"Buy milk","completed":true}`))

		var parsed models.TodoRequest
		require.NoError(t, ParseJSONBody(req, &parsed))

		require.NotNil(t, parsed.Title)
		assert.Equal(t, "Buy milk", *parsed.Title)
		require.NotNil(t, parsed.Completed)
		assert.True(t, *parsed.Completed)
		assert.Nil(t, parsed.Description, "absent fields stay nil")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{invalid json}`))

		var parsed models.TodoRequest
		assert.Error(t, ParseJSONBody(req, &parsed))
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))

		var parsed models.TodoRequest
		err := ParseJSONBody(req, &parsed)
		require.Error(t, err)
		assert.Equal(t, "empty request body", err.Error())
	})

	t.Run("extra fields ignored", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"username":"a","password":"b","unknown":1}`))

		var parsed models.LoginRequest
		require.NoError(t, ParseJSONBody(req, &parsed))
		assert.Equal(t, "a", parsed.Username)
	})

	t.Run("body is consumed", func(t *testing.T) {
		body := io.NopCloser(bytes.NewReader([]byte(`{"email":"a@example.com"}`)))
		req := httptest.NewRequest("POST", "/", body)

		var parsed models.ResendActivationRequest
		_ = ParseJSONBody(req, &parsed)

		remaining, _ := io.ReadAll(req.Body)
		assert.Empty(t, remaining)
	})
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("handled"))
	})
	corsHandler := CORS(next)

	t.Run("preflight OPTIONS request", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/api/todos/", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()

		corsHandler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String(), "preflight must not reach the handler")
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

		headers := w.Header().Get("Access-Control-Allow-Headers")
		assert.Contains(t, headers, "Authorization")
		assert.Contains(t, headers, "Content-Type")

		methods := w.Header().Get("Access-Control-Allow-Methods")
		for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"} {
			assert.Contains(t, methods, m)
		}
	})

	t.Run("regular request with origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/todos/", nil)
		req.Header.Set("Origin", "https://example.com")
		w := httptest.NewRecorder()

		corsHandler.ServeHTTP(w, req)

		assert.Equal(t, "handled", w.Body.String())
		assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request without origin defaults to wildcard", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/todos/", nil)
		w := httptest.NewRecorder()

		corsHandler.ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestClientIP(t *testing.T) {
	proxies := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("fd00::/8"),
	}

	testCases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trusted    []netip.Prefix
		expectedIP string
	}{
		{"RemoteAddr with port", nil, "192.168.1.50:54321", nil, "192.168.1.50"},
		{"RemoteAddr without port", nil, "192.168.1.50", nil, "192.168.1.50"},
		{"IPv6 RemoteAddr with port", nil, "[::1]:12345", nil, "::1"},
		{"unparseable RemoteAddr kept as is", nil, "pipe", nil, "pipe"},
		{"X-Forwarded-For ignored without trusted proxies", map[string]string{"X-Forwarded-For": "203.0.113.195"}, "198.51.100.7:1", nil, "198.51.100.7"},
		{"X-Forwarded-For ignored from untrusted peer", map[string]string{"X-Forwarded-For": "203.0.113.195"}, "198.51.100.7:1", proxies, "198.51.100.7"},
		{"X-Real-IP never trusted", map[string]string{"X-Real-IP": "203.0.113.50"}, "198.51.100.7:1", proxies, "198.51.100.7"},
		{"trusted peer single hop", map[string]string{"X-Forwarded-For": "203.0.113.195"}, "10.0.0.1:12345", proxies, "203.0.113.195"},
		{"rightmost untrusted hop wins", map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.195, 10.2.2.2"}, "10.0.0.1:1", proxies, "203.0.113.195"},
		{"all hops trusted", map[string]string{"X-Forwarded-For": "10.9.9.9"}, "10.0.0.1:1", proxies, "10.9.9.9"},
		{"garbage hop stops the walk", map[string]string{"X-Forwarded-For": "203.0.113.1, junk"}, "10.0.0.1:1", proxies, "10.0.0.1"},
		{"trusted IPv6 peer", map[string]string{"X-Forwarded-For": "2001:db8::1"}, "[fd00::2]:443", proxies, "2001:db8::1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tc.expectedIP, ClientIP(req, tc.trusted))
		})
	}
}

func TestHostAllowed(t *testing.T) {
	allowed := []string{".localhost", "127.0.0.1", "[::1]", "todo.example.com", ".example.org"}

	testCases := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"localhost:8000", true},
		{"app.localhost", true},
		{"127.0.0.1:3318", true},
		{"[::1]", true},
		{"[::1]:3318", true},
		{"TODO.example.com", true},
		{"todo.example.com.", true},
		{"example.org", true},
		{"a.b.example.org", true},
		{"evil.example", false},
		{"todo.example.com.evil.example", false},
		{"badexample.org", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.host, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Host = tc.host
			assert.Equal(t, tc.want, HostAllowed(req, allowed))
		})
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "anything.test"
	assert.True(t, HostAllowed(req, []string{"*"}))
	assert.False(t, HostAllowed(req, nil))
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"), "burst exhausted")
	assert.True(t, rl.Allow("5.6.7.8"), "clients are limited independently")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("1.2.3.4"), "one token refills per second at 60/min")

	// Idle clients are evicted when a new client arrives
	now = now.Add(time.Hour)
	rl.Allow("9.9.9.9")
	rl.mu.Lock()
	_, stillThere := rl.clients["1.2.3.4"]
	rl.mu.Unlock()
	assert.False(t, stillThere)
}

func TestRateLimiter_Wrap(t *testing.T) {
	rl := NewRateLimiter(6, 1)
	h := rl.Wrap(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest("POST", "/api/auth/login/", nil)
	req.RemoteAddr = "10.1.1.1:999"

	w := httptest.NewRecorder()
	h(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	h(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Request was throttled.", resp.Message)
}

func resolverFor(u *models.User, err error) UserResolver {
	return func(r *http.Request) (*models.User, error) { return u, err }
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	if u := CurrentUser(r.Context()); u != nil {
		w.Write([]byte(u.Username))
		return
	}
	w.Write([]byte("anonymous"))
}

func TestAuthenticate(t *testing.T) {
	alice := &models.User{ID: 1, Username: "alice", IsActive: true}

	t.Run("user stored in context", func(t *testing.T) {
		w := httptest.NewRecorder()
		Authenticate(resolverFor(alice, nil))(echoUser)(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, "alice", w.Body.String())
	})

	t.Run("anonymous passes through", func(t *testing.T) {
		w := httptest.NewRecorder()
		Authenticate(resolverFor(nil, nil))(echoUser)(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, "anonymous", w.Body.String())
	})

	t.Run("auth error is 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		Authenticate(resolverFor(nil, &AuthError{Message: "Invalid token."}))(echoUser)(w, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Token", w.Header().Get("WWW-Authenticate"))
		var resp models.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "Invalid token.", resp.Message)
	})

	t.Run("other errors are 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		Authenticate(resolverFor(nil, errors.New("boom")))(echoUser)(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestLoginRequired(t *testing.T) {
	t.Run("anonymous redirected with next", func(t *testing.T) {
		w := httptest.NewRecorder()
		LoginRequired(resolverFor(nil, nil), "/login/")(echoUser)(w, httptest.NewRequest("GET", "/todo/3/edit/?x=1", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login/?next=%2Ftodo%2F3%2Fedit%2F%3Fx%3D1", w.Header().Get("Location"))
	})

	t.Run("rejected credentials also redirect", func(t *testing.T) {
		w := httptest.NewRecorder()
		LoginRequired(resolverFor(nil, &AuthError{Message: "User inactive or deleted."}), "/accounts/login/")(echoUser)(w, httptest.NewRequest("GET", "/accounts/profile/", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/accounts/login/?next="))
	})

	t.Run("logged in user reaches handler", func(t *testing.T) {
		w := httptest.NewRecorder()
		LoginRequired(resolverFor(&models.User{Username: "bob"}, nil), "/login/")(echoUser)(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, "bob", w.Body.String())
	})
}

func TestOptionalUser(t *testing.T) {
	w := httptest.NewRecorder()
	OptionalUser(resolverFor(nil, errors.New("db down")))(echoUser)(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "anonymous", w.Body.String())

	w = httptest.NewRecorder()
	OptionalUser(resolverFor(&models.User{Username: "carol"}, nil))(echoUser)(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "carol", w.Body.String())
}

func TestMetricsHandler(t *testing.T) {
	// Make sure at least one series exists
	WithLogging(func(w http.ResponseWriter, r *http.Request) {})(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "taskflow_http_requests_total")
}

func TestRateLimiter_ForwardedFor(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

	send := func(h http.HandlerFunc, peer, xff string) int {
		req := httptest.NewRequest("POST", "/api/auth/login/", nil)
		req.RemoteAddr = peer
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		h(w, req)
		return w.Code
	}

	t.Run("rotating header from one peer shares a bucket", func(t *testing.T) {
		h := NewRateLimiter(6, 2).Wrap(ok)

		assert.Equal(t, http.StatusNoContent, send(h, "198.51.100.7:1", "1.1.1.1"))
		assert.Equal(t, http.StatusNoContent, send(h, "198.51.100.7:2", "2.2.2.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "198.51.100.7:3", "3.3.3.3"))
	})

	t.Run("clients behind a trusted proxy get their own buckets", func(t *testing.T) {
		h := NewRateLimiter(6, 1, netip.MustParsePrefix("10.0.0.1/32")).Wrap(ok)

		assert.Equal(t, http.StatusNoContent, send(h, "10.0.0.1:1", "203.0.113.1"))
		assert.Equal(t, http.StatusNoContent, send(h, "10.0.0.1:1", "203.0.113.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.1:1", "203.0.113.1"))
	})
}
