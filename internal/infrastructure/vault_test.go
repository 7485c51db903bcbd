package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architeacher/svc-msg-queue/internal/config"
)

func newTestVaultRepository(t *testing.T, handler http.HandlerFunc) *VaultRepository {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewVaultClient(config.SecretStorageConfig{
		Address: server.URL,
		Timeout: time.Second,
	})
	require.NoError(t, err)

	return NewVaultRepository(client)
}

func TestVaultRepository_Ping(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()

		repo := newTestVaultRepository(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/sys/health", r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"initialized":true,"sealed":false,"standby":false,"version":"1.15.0"}`))
		})

		assert.NoError(t, repo.Ping(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		repo := newTestVaultRepository(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		assert.ErrorContains(t, repo.Ping(context.Background()), "failed to reach vault")
	})
}

func TestNewVaultClient(t *testing.T) {
	t.Parallel()

	client, err := NewVaultClient(config.SecretStorageConfig{
		Address:   "http://vault:8200",
		Namespace: "team",
		Timeout:   time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "http://vault:8200", client.Address())
	assert.Equal(t, "team", client.Namespace())
}
