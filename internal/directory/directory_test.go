package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	potassium "github.com/bananalabs-oss/potassium/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAccountsServer serves /internal/accounts/:id behind potassium's
// service-token check, the way the accounts service mounts it.
func newAccountsServer(t *testing.T, token string, known uuid.UUID, name string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	internal := r.Group("/internal")
	internal.Use(potassium.ServiceAuth(token))
	internal.GET("/accounts/:id", func(c *gin.Context) {
		if c.Param("id") != known.String() {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": known, "display_name": name})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPResolver_Resolve(t *testing.T) {
	known := uuid.New()
	srv := newAccountsServer(t, "svc-token", known, "Nina Drums")

	r := NewHTTPResolver(srv.URL+"/", "svc-token")

	summary, err := r.Resolve(context.Background(), known)
	require.NoError(t, err)
	assert.Equal(t, known, summary.ID)
	assert.Equal(t, "Nina Drums", summary.DisplayName)

	_, err = r.Resolve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestHTTPResolver_WrongServiceToken(t *testing.T) {
	known := uuid.New()
	srv := newAccountsServer(t, "svc-token", known, "Nina Drums")

	_, err := NewHTTPResolver(srv.URL, "other-token").Resolve(context.Background(), known)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
	assert.Contains(t, err.Error(), "401")
}

func TestHTTPResolver_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPResolver(srv.URL, "t").Resolve(context.Background(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestStaticResolver(t *testing.T) {
	id := uuid.New()
	r := StaticResolver{Names: map[uuid.UUID]string{id: "Sam"}}

	s, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Sam", s.DisplayName)

	s, err = r.Resolve(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, s.DisplayName)
}
