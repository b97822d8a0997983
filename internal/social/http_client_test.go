package social

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holder-tiers/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveHandleForAddress(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wallets/0xabc", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"user":{"username":"@Alice","pfp":"https://img/a.png"}}}`))
	})

	c := NewHTTPClient(Options{
		AddressURL: srv.URL + "/wallets/{address}",
		APIKey:     "secret",
		HandlePath: "data.user.username",
		AvatarPath: "data.user.pfp",
	})

	p, err := c.ResolveHandleForAddress(context.Background(), "0xabc")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, domain.Handle("alice"), p.Handle)
	assert.Equal(t, "https://img/a.png", p.AvatarURL)
}

func TestResolveHandleForAddress_NotFoundIsNil(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := NewHTTPClient(Options{AddressURL: srv.URL + "/{address}"})

	p, err := c.ResolveHandleForAddress(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestResolveHandleForAddress_EmptyHandleIsNil(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"handle":""}`))
	})
	c := NewHTTPClient(Options{AddressURL: srv.URL + "/{address}"})

	p, err := c.ResolveHandleForAddress(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestResolveHandleForAddress_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		want      error
		permanent bool
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited, false},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized, true},
		{"forbidden", http.StatusForbidden, ErrUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			c := NewHTTPClient(Options{AddressURL: srv.URL + "/{address}"})

			_, err := c.ResolveHandleForAddress(context.Background(), "0xabc")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var perm *backoff.PermanentError
			assert.Equal(t, tt.permanent, errors.As(err, &perm))
		})
	}
}

func TestResolveHandleForAddress_ServerError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	c := NewHTTPClient(Options{AddressURL: srv.URL + "/{address}"})

	_, err := c.ResolveHandleForAddress(context.Background(), "0xabc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestResolveAddressForHandle(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/bob/wallet", r.URL.Path)
		_, _ = w.Write([]byte(`{"wallet":{"address":"0xDEF"},"avatarUrl":"https://img/b.png"}`))
	})
	c := NewHTTPClient(Options{
		HandleURL:   srv.URL + "/users/{handle}/wallet",
		AddressPath: "wallet.address",
	})

	w, err := c.ResolveAddressForHandle(context.Background(), "bob")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, domain.Address("0xdef"), w.Address)
	assert.Equal(t, "https://img/b.png", w.AvatarURL)
}

func TestMissingTemplateIsPermanent(t *testing.T) {
	c := NewHTTPClient(Options{})

	_, err := c.ResolveAddressForHandle(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrMissingURL)

	var perm *backoff.PermanentError
	assert.True(t, errors.As(err, &perm))
}
