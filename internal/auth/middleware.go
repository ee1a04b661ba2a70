package auth

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

var middlewareTracer = otel.Tracer("auth-middleware")

// Gin context keys set by RequireAuth
const (
	SessionIDKey = "session_id"
	ClaimsKey    = "claims"
)

// TokenQueryParam carries the token for clients that cannot set headers (websockets)
const TokenQueryParam = "token"

// ExtractToken returns the bearer token from the Authorization header, or
// from the token query parameter when the header is absent.
func ExtractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get(TokenQueryParam))
}

func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")

	// Expected format: "Bearer <token>"
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.HasPrefix(authHeader, prefix) {
		return ""
	}

	return strings.TrimSpace(authHeader[len(prefix):])
}

// RequireAuth is a Gin middleware that validates session tokens
func RequireAuth(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := middlewareTracer.Start(c.Request.Context(), "auth.require_auth_gin")
		defer span.End()

		token := ExtractToken(c.Request)
		if token == "" {
			span.SetAttributes(attribute.Bool("auth.token_present", false))
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "Missing or invalid authorization header",
				Code:  models.ErrCodeUnauthorized,
			})
			return
		}

		span.SetAttributes(attribute.Bool("auth.token_present", true))

		claims, err := jwtManager.ValidateToken(ctx, token)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.Bool("auth.token_valid", false))
			log.Printf(`{"level":"warn","message":"Invalid token","error":"%v"}`, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "Invalid or expired token",
				Code:  models.ErrCodeUnauthorized,
			})
			return
		}

		span.SetAttributes(
			attribute.Bool("auth.token_valid", true),
			attribute.String("session.id", claims.SessionID),
		)

		c.Set(SessionIDKey, claims.SessionID)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireSessionAccess rejects requests whose token is scoped to another session
// than the one named by the route parameter. Must be used after RequireAuth.
func RequireSessionAccess(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := middlewareTracer.Start(c.Request.Context(), "auth.require_session_access")
		defer span.End()

		sessionID := c.GetString(SessionIDKey)
		requested := c.Param(param)
		span.SetAttributes(attribute.String("session.requested", requested))

		if sessionID == "" || sessionID != requested {
			span.SetAttributes(attribute.Bool("auth.session_authorized", false))
			log.Printf(`{"level":"warn","message":"Token not valid for session","token_session_id":"%s","requested_session_id":"%s"}`,
				sessionID, requested)
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Error: "Token does not grant access to this session",
				Code:  models.ErrCodeForbidden,
			})
			return
		}

		span.SetAttributes(attribute.Bool("auth.session_authorized", true))
		c.Next()
	}
}

// ClaimsFrom returns the claims attached by RequireAuth
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
