// Package auth verifies bearer tokens issued by the hosted auth provider.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnauthorized is returned for any missing, malformed or rejected token
var ErrUnauthorized = errors.New("unauthorized")

const userKey = "auth_user"

// User is the authenticated caller
type User struct {
	ID    uuid.UUID
	Email string
	Role  string
}

// Config locates the auth provider
type Config struct {
	// URL is the provider base URL; tokens are checked at URL + /auth/v1/user
	URL     string
	AnonKey string
	// JWTSecret enables local HS256 verification
	JWTSecret string
}

// Verifier validates tokens locally when a JWT secret is configured and
// falls back to the provider's user endpoint.
type Verifier struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewVerifier creates a Verifier
func NewVerifier(cfg Config, logger *zap.Logger) *Verifier {
	return &Verifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Verify returns the user a token belongs to
func (v *Verifier) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	var localErr error
	if v.cfg.JWTSecret != "" {
		user, err := v.verifyLocal(token)
		if err == nil {
			return user, nil
		}
		localErr = err
	}

	if v.cfg.URL == "" {
		if localErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, localErr)
		}
		return nil, fmt.Errorf("%w: no verification method configured", ErrUnauthorized)
	}
	return v.verifyRemote(ctx, token)
}

func (v *Verifier) verifyLocal(token string) (*User, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(v.cfg.JWTSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("jwt invalid")
	}

	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("jwt subject: %w", err)
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return &User{ID: id, Email: email, Role: role}, nil
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (v *Verifier) verifyRemote(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.URL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.cfg.AnonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: provider returned %d: %s", ErrUnauthorized, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var u remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id: %v", ErrUnauthorized, err)
	}
	return &User{ID: id, Email: u.Email, Role: u.Role}, nil
}

// RequireAuth rejects requests without a valid bearer token with
// 401 {"error":"Unauthorized"} and stores the user for downstream handlers.
func (v *Verifier) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		user, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			v.logger.Debug("auth_rejected", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside RequireAuth
func CurrentUser(c *gin.Context) *User {
	u, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := u.(*User)
	return user
}

// UserID returns the authenticated user's ID, or uuid.Nil
func UserID(c *gin.Context) uuid.UUID {
	if u := CurrentUser(c); u != nil {
		return u.ID
	}
	return uuid.Nil
}

// SetUser stores user on the context as RequireAuth does
func SetUser(c *gin.Context, user *User) {
	c.Set(userKey, user)
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
