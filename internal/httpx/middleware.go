package httpx

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
	HeaderAdminKey  = "X-Admin-Key"

	RoleAdmin = "admin"

	ridKey      = "rid"
	identityKey = "identity"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(ridKey, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		rid, _ := c.Get(ridKey)
		who := "-"
		if id := CurrentIdentity(c); id.UserID != "" {
			who = id.UserID
		}
		log.Printf("[http] rid=%v %s %s status=%d user=%s dur=%s",
			rid, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), who, time.Since(start))
	}
}

// RID returns the request id set by RequestID, or "".
func RID(c *gin.Context) string {
	return c.GetString(ridKey)
}

// Identity is the caller as established by the authentication layer in front of
// this service. A zero Identity is a guest.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

func (i Identity) Admin() bool { return i.Role == RoleAdmin }

// Identify attaches the caller identity to the context. The user headers come from
// the upstream auth proxy. When adminKeyHash is set, the admin role is granted only
// to requests carrying the matching X-Admin-Key; a role header alone is not enough.
func Identify(adminKeyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identity{
			UserID: c.GetHeader(HeaderUserID),
			Email:  c.GetHeader(HeaderUserEmail),
			Role:   c.GetHeader(HeaderUserRole),
		}
		if adminKeyHash != "" {
			if id.Role == RoleAdmin {
				id.Role = ""
			}
			if key := c.GetHeader(HeaderAdminKey); key != "" {
				if err := bcrypt.CompareHashAndPassword([]byte(adminKeyHash), []byte(key)); err == nil {
					id.Role = RoleAdmin
				} else {
					log.Printf("[http] rid=%s rejected admin key", RID(c))
				}
			}
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}

// AdminOnly stops requests whose identity is not an admin.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentIdentity(c).Admin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// Authenticated stops guest requests.
func Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentIdentity(c).UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}
