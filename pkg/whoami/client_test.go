package whoami

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"labinventory/pkg/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "success",
			"status_code": 200,
			"data": map[string]interface{}{
				"user":        map[string]string{"id": "u-1", "username": "mira", "role": "lab_staff"},
				"permissions": []string{"read_inventory"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)

	me, err := c.Me(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u-1", me.User.ID)
	assert.Equal(t, "lab_staff", me.User.Role)
	assert.Equal(t, []string{"read_inventory"}, me.Permissions)

	_, err = c.Me(context.Background(), "bad")
	assert.True(t, errors.Is(err, ErrNoIdentity))

	_, err = c.Me(context.Background(), "")
	assert.True(t, errors.Is(err, ErrNoIdentity))
}

func TestClientMeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20*time.Millisecond)
	_, err := c.Me(context.Background(), "good")
	assert.Error(t, err)
}

func TestClientCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/permissions/catalog", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "success",
			"status_code": 200,
			"data":        rbac.Default().Document(),
		})
	}))
	defer srv.Close()

	cat, err := NewClient(srv.URL, time.Second).Catalog(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, rbac.Default().Version(), cat.Version())
	assert.True(t, cat.HasPerm(rbac.RoleAdmin, rbac.ApprovePurchaseOrders))
	assert.False(t, cat.HasPerm(rbac.RoleViewer, rbac.WriteInventory))
}
