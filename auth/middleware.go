package auth

import (
	"hidden-talk/domain"
	apperrors "hidden-talk/errors"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// CookieName carries the credential for browser clients.
	CookieName      = "x-auth-token"
	RoomIDParam     = "roomId"
	credentialKey   = "credential"
	bearerPrefix    = "Bearer "
	authorizationHd = "Authorization"
)

// RequireCredential guards every room route except creation and join.
// On success the credential is available to handlers through CredentialFrom.
func RequireCredential(guard Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, err := guard.Authorize(c.Query(RoomIDParam), TokenFrom(c))
		if err != nil {
			status, message := apperrors.MapToHTTPError(err)
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}
		c.Set(credentialKey, credential)
		c.Next()
	}
}

// TokenFrom reads the bearer header first, then the cookie.
func TokenFrom(c *gin.Context) string {
	if header := c.GetHeader(authorizationHd); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	}
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie
	}
	return ""
}

func CredentialFrom(c *gin.Context) (domain.Credential, bool) {
	value, ok := c.Get(credentialKey)
	if !ok {
		return domain.Credential{}, false
	}
	credential, ok := value.(domain.Credential)
	return credential, ok
}
