package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/service-desk-realtime/internal/adapters/secondary/rest"
	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

type stubCredentials struct {
	mu        sync.Mutex
	token     string
	next      string
	identity  domain.Identity
	refreshes int
}

func (s *stubCredentials) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *stubCredentials) Refresh(context.Context) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	if s.next == "" {
		return domain.Credential{}, apperrors.ErrNoCredential
	}
	s.token = s.next
	return domain.Credential{AccessToken: s.token}, nil
}

func (s *stubCredentials) Identity() (domain.Identity, error) {
	return s.identity, nil
}

func TestClient_ListNotifications(t *testing.T) {
	tests := []struct {
		name     string
		identity domain.Identity
		wantPath string
	}{
		{"customer scope", domain.Identity{UserID: "u1", Roles: []string{"customer"}}, "/api/customer/notifications"},
		{"admin scope", domain.Identity{UserID: "s1", Roles: []string{"technician"}}, "/api/admin/notifications"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"items":[{"id":"n1","type":"ticket","message":"hi","read":false}],"unreadCount":4}`))
			}))
			defer server.Close()

			client := rest.NewClient(server.URL+"/api/", time.Second, logging.Discard()).
				WithCredentials(&stubCredentials{token: "tok", identity: tt.identity})

			page, err := client.ListNotifications(context.Background())
			require.NoError(t, err)
			require.Len(t, page.Items, 1)
			assert.Equal(t, "n1", page.Items[0].ID)
			require.NotNil(t, page.UnreadCount)
			assert.Equal(t, 4, *page.UnreadCount)
		})
	}
}

func TestClient_RetriesOnceAfterRefresh(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/customer/notifications/n%201/read", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	creds := &stubCredentials{token: "stale", next: "fresh", identity: domain.Identity{UserID: "u1"}}
	client := rest.NewClient(server.URL, time.Second, logging.Discard()).WithCredentials(creds)

	require.NoError(t, client.MarkNotificationRead(context.Background(), "n 1"))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, creds.refreshes)
}

func TestClient_RefreshLogCarriesUserID(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	var out bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: "debug", Format: "json", Output: &out})
	creds := &stubCredentials{token: "stale", next: "fresh", identity: domain.Identity{UserID: "u-77"}}
	client := rest.NewClient(server.URL, time.Second, logger).WithCredentials(creds)

	require.NoError(t, client.MarkNotificationRead(context.Background(), "n1"))
	assert.Contains(t, out.String(), "access token rejected")
	assert.Contains(t, out.String(), `"user_id":"u-77"`)
}

func TestClient_UnauthorizedAfterFailedRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := &stubCredentials{token: "stale", identity: domain.Identity{UserID: "u1"}}
	client := rest.NewClient(server.URL, time.Second, logging.Discard()).WithCredentials(creds)

	_, err := client.ListNotifications(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	var reqErr *apperrors.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	assert.Equal(t, "expired", reqErr.Body)
	assert.Equal(t, 1, creds.refreshes)
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := rest.NewClient(server.URL, time.Second, logging.Discard()).
		WithCredentials(&stubCredentials{token: "tok", identity: domain.Identity{UserID: "u1"}})

	err := client.MarkNotificationRead(context.Background(), "n1")
	assert.ErrorIs(t, err, apperrors.ErrRequestFailed)
}

func TestClient_RefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/refresh", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["refreshToken"] != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"accessToken":"a2","refreshToken":"r2"}`))
	}))
	defer server.Close()

	client := rest.NewClient(server.URL, time.Second, logging.Discard())

	cred, err := client.RefreshToken(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.Credential{AccessToken: "a2", RefreshToken: "r2"}, cred)

	_, err = client.RefreshToken(context.Background(), "bad")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestClient_NoCredentials(t *testing.T) {
	client := rest.NewClient("http://127.0.0.1:1", time.Second, logging.Discard())
	_, err := client.ListNotifications(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNoCredential)
}
