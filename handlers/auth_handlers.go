package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"mabletask/funnel/models"
	"mabletask/funnel/store"
	"mabletask/funnel/utils"
)

// UserRepository is the account storage the auth endpoints need.
type UserRepository interface {
	CreateUser(ctx context.Context, email string, hashedPassword []byte) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthHandlers struct {
	Users     UserRepository
	JWTSecret []byte
	// SecureCookie marks the token cookie Secure; set in release mode.
	SecureCookie bool
}

func NewAuthHandlers(users UserRepository, jwtSecret []byte, secureCookie bool) *AuthHandlers {
	return &AuthHandlers{Users: users, JWTSecret: jwtSecret, SecureCookie: secureCookie}
}

func (h *AuthHandlers) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	user, err := h.Users.CreateUser(c.Request.Context(), req.Email, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "User with this email already exists"})
			return
		}
		slog.Error("failed to create user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "userEmail": user.Email})
}

// Login checks credentials and sets the jwt_token cookie.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user, err := h.Users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			slog.Error("failed to load user for login", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check credentials"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	tokenString, err := utils.GenerateJWT(user, h.JWTSecret, time.Now())
	if err != nil {
		slog.Error("failed to generate token", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authentication token"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("jwt_token", tokenString, int(utils.TokenTTL/time.Second), "/", "", h.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "userEmail": user.Email, "token": tokenString})
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetCookie("jwt_token", "", -1, "/", "", h.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
