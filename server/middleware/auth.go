package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/uniai/errors"
)

// AuthConfig configures the bearer-JWT middleware.
type AuthConfig struct {
	// Secret is the HS256 signing key. Empty disables auth entirely.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// SkipPaths are URL path prefixes served without a token.
	SkipPaths []string `yaml:"skip_paths" mapstructure:"skip_paths"`
}

// Enabled reports whether the middleware would enforce anything.
func (c AuthConfig) Enabled() bool { return c.Secret != "" }

// Auth validates HS256 bearer tokens and stores the claims on the context.
// Probe endpoints and configured skip prefixes pass through.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	skip := append([]string{"/health", "/info"}, cfg.SkipPaths...)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range skip {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		claims, err := parseToken(token, cfg)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(claimsKey, claims)
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			c.Set("user_id", sub)
		}
		c.Next()
	}
}

// Claims returns the JWT claims stored by Auth, if any.
func Claims(c *gin.Context) (jwt.MapClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(jwt.MapClaims)
	return claims, ok
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("authorization header required")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("authorization header must be of the form: Bearer <token>")
	}
	return token, nil
}

func parseToken(tokenString string, cfg AuthConfig) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	resp := apperrors.New(apperrors.ErrCodeAuthentication, message, http.StatusUnauthorized)
	c.AbortWithStatusJSON(http.StatusUnauthorized, resp.ToResponse())
}
