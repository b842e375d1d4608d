package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const operatorRole = "operator"

func (a *App) createOperatorSessionToken(session OperatorSession) (string, error) {
	claims := jwt.MapClaims{
		"email": session.Email,
		"role":  session.Role,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(operatorSessionDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.AppSigningSecret))
}

func (a *App) verifyOperatorSessionToken(tokenString string) (*OperatorSession, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(a.cfg.AppSigningSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if email == "" || role != operatorRole {
		return nil, fmt.Errorf("invalid session payload")
	}
	return &OperatorSession{Email: email, Role: role}, nil
}

func (a *App) requireOperatorSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(operatorCookieName)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Operator session required"})
			c.Abort()
			return
		}
		session, err := a.verifyOperatorSessionToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Operator session required"})
			c.Abort()
			return
		}
		c.Set("operatorSession", *session)
		c.Next()
	}
}

func getOperatorSession(c *gin.Context) (OperatorSession, error) {
	value, ok := c.Get("operatorSession")
	if !ok {
		return OperatorSession{}, fmt.Errorf("missing session")
	}
	session, ok := value.(OperatorSession)
	if !ok {
		return OperatorSession{}, fmt.Errorf("invalid session")
	}
	return session, nil
}

func (a *App) startOperatorSession(c *gin.Context, session OperatorSession) error {
	token, err := a.createOperatorSessionToken(session)
	if err != nil {
		return err
	}
	secure := a.cfg.Env == "production"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(operatorCookieName, token, int(operatorSessionDuration.Seconds()), "/", "", secure, true)
	return nil
}

func (a *App) clearOperatorSession(c *gin.Context) {
	secure := a.cfg.Env == "production"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(operatorCookieName, "", -1, "/", "", secure, true)
}

func (a *App) operatorLoginHandler(c *gin.Context) {
	now := time.Now().UTC()
	if !a.checkRateLimit("operator-login:"+c.ClientIP(), loginRateLimitRequests, loginRateLimitWindow, now) {
		writeAPIError(c, &apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "Too many login attempts. Please retry later."})
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_payload", Message: "Invalid payload"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	if a.cfg.OperatorEmail == "" || len(a.operatorPasswordHash) == 0 ||
		email != strings.ToLower(a.cfg.OperatorEmail) ||
		bcrypt.CompareHashAndPassword(a.operatorPasswordHash, []byte(body.Password)) != nil {
		a.log.Warn("operator login rejected", "email", email, "ip", c.ClientIP())
		writeAPIError(c, &apiError{Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: "Invalid email or password"})
		return
	}

	session := OperatorSession{Email: a.cfg.OperatorEmail, Role: operatorRole}
	if err := a.startOperatorSession(c, session); err != nil {
		a.log.Error("failed to start operator session", "err", err)
		writeAPIError(c, &apiError{Status: http.StatusInternalServerError, Code: "session_error", Message: "Could not start session"})
		return
	}
	a.log.Info("operator logged in", "email", session.Email)
	c.JSON(http.StatusOK, gin.H{"email": session.Email, "role": session.Role})
}

func (a *App) operatorLogoutHandler(c *gin.Context) {
	a.clearOperatorSession(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) operatorSessionHandler(c *gin.Context) {
	token, err := c.Cookie(operatorCookieName)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	session, err := a.verifyOperatorSessionToken(token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "email": session.Email, "role": session.Role})
}
