package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/identity"
)

const principalKey = "principal"

// Verifier validates session tokens.
type Verifier interface {
	Verify(token string) (identity.Principal, error)
}

// Auth requires a valid session token, from the Authorization bearer header
// or, for WebSocket upgrades where browsers cannot set headers, the token
// query parameter. The principal is stored in the request context.
func Auth(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		p, err := v.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		c.Request = c.Request.WithContext(identity.WithPrincipal(c.Request.Context(), p))
		c.Set(principalKey, p)
		c.Next()
	}
}

// Principal returns the authenticated principal of the request.
func Principal(c *gin.Context) (identity.Principal, bool) {
	if v, ok := c.Get(principalKey); ok {
		p, ok := v.(identity.Principal)
		return p, ok
	}
	return identity.FromContext(c.Request.Context())
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
