package auth

import (
	"errors"
	"net/http"

	"github.com/antibyte/minipl/pkg/logger"
	"github.com/antibyte/minipl/pkg/store"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Authenticator checks user credentials.
type Authenticator interface {
	Authenticate(username, password string) (*store.User, error)
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the signed token.
type LoginResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

// ErrorResponse is the JSON body of every auth failure.
type ErrorResponse struct {
	Message string `json:"message"`
}

// LoginHandler verifies the posted credentials and answers with a token.
func LoginHandler(users Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req LoginRequest
		if err := c.Bind(&req); err != nil {
			logger.AuthWarn("invalid login request: %v", err)
			return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request format"})
		}
		if req.Username == "" || req.Password == "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "username and password are required"})
		}

		user, err := users.Authenticate(req.Username, req.Password)
		if errors.Is(err, store.ErrInvalidCredentials) {
			logger.SecurityWarn("rejected login for %s from %s", req.Username, c.RealIP())
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid username or password"})
		}
		if err != nil {
			logger.AuthError("login failed: %v", err)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "login failed"})
		}

		sessionID := generateSessionID()
		token, err := GenerateToken(sessionID, user.Username)
		if err != nil {
			logger.AuthError("could not sign token: %v", err)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "login failed"})
		}

		return c.JSON(http.StatusOK, LoginResponse{Token: token, SessionID: sessionID, Username: user.Username})
	}
}

// Middleware rejects requests without a valid token. When enabled is
// false every request passes as a fresh guest session.
func Middleware(enabled bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method == http.MethodOptions {
				return next(c)
			}

			if !enabled {
				claims := &SessionClaims{SessionID: generateSessionID(), Username: GuestUser}
				c.SetRequest(req.WithContext(AddClaimsToContext(req.Context(), claims)))
				return next(c)
			}

			tokenString, err := ExtractTokenFromRequest(req)
			if err != nil {
				logger.AuthWarn("no token in request to %s: %v", req.URL.Path, err)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "missing token"})
			}

			claims, err := ValidateToken(tokenString)
			if err != nil {
				logger.AuthWarn("invalid token: %v", err)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid token"})
			}

			c.SetRequest(req.WithContext(AddClaimsToContext(req.Context(), claims)))
			return next(c)
		}
	}
}

func generateSessionID() string {
	return uuid.New().String()
}
