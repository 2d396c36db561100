package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(hash string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Identify(hash))
	r.GET("/whoami", func(c *gin.Context) {
		id := CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user": id.UserID, "admin": id.Admin(), "rid": RID(c)})
	})
	r.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/mine", Authenticated(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := newRouter("")
	w := do(r, "/whoami", nil)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = do(r, "/whoami", map[string]string{HeaderRequestID: "abc"})
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))
	assert.Contains(t, w.Body.String(), `"rid":"abc"`)
}

func TestAdminOnly_RoleHeaderWithoutHash(t *testing.T) {
	r := newRouter("")
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", map[string]string{HeaderUserRole: "admin"}).Code)
}

func TestAdminOnly_KeyHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	r := newRouter(string(hash))

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", map[string]string{HeaderUserRole: "admin"}).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", map[string]string{HeaderAdminKey: "wrong"}).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", map[string]string{HeaderAdminKey: "s3cret"}).Code)
}

func TestAuthenticated(t *testing.T) {
	r := newRouter("")
	assert.Equal(t, http.StatusUnauthorized, do(r, "/mine", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/mine", map[string]string{HeaderUserID: "u1"}).Code)
}
