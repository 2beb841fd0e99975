package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/auth"
	apperrors "github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/logger"
)

// Gin context keys set by Auth.
const (
	KeyClaims = "auth_claims"
	KeyUserID = "user_id"
)

// QueryAccessToken is the query parameter accepted in place of the
// Authorization header. Browser EventSource cannot set headers.
const QueryAccessToken = "access_token"

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Auth authenticates the request with a bearer token from the
// Authorization header or the access_token query parameter. On success the
// claims are stored on the Gin context and in the request context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			abortWithError(c, err)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		ctx := auth.WithClaims(c.Request.Context(), claims)
		ctx = logger.ContextWithUserID(ctx, claims.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(KeyClaims, claims)
		c.Set(KeyUserID, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by Auth.
func UserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(KeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// RequireKey admits only requests carrying key in header. An empty key
// rejects everything.
func RequireKey(header, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			abortWithError(c, apperrors.Unauthorized("Invalid or missing "+header+" header."))
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if q := c.Query(QueryAccessToken); q != "" {
			return q, nil
		}
		return "", apperrors.Unauthorized("")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperrors.Unauthorized("Invalid authorization header format.")
	}
	return strings.TrimSpace(token), nil
}

func abortWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
