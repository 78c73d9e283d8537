package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-finance-api/internal/middleware"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
	"github.com/noah-isme/enrollment-finance-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	StudentLogin(ctx context.Context, req models.StudentLoginRequest) (*models.LoginResponse, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate administrator
// @Description Authenticate an administrator by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindLogin(c, &req) {
		return
	}
	req.IP, req.UserAgent = clientOrigin(c)
	respondLogin(c, func(ctx context.Context) (*models.LoginResponse, error) {
		return h.service.Login(ctx, req)
	})
}

// StudentLogin godoc
// @Summary Authenticate student
// @Description Authenticate a student by carnet and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.StudentLoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/student/login [post]
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req models.StudentLoginRequest
	if !bindLogin(c, &req) {
		return
	}
	req.IP, req.UserAgent = clientOrigin(c)
	respondLogin(c, func(ctx context.Context) (*models.LoginResponse, error) {
		return h.service.StudentLogin(ctx, req)
	})
}

// Me godoc
// @Summary Get current principal
// @Description Returns the authenticated administrator or student
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	raw, _ := c.Get(middleware.ContextUserKey)
	claims, ok := raw.(*models.JWTClaims)
	if !ok || claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, models.UserInfo{
		ID:       claims.UserID,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}, nil)
}

func bindLogin(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return false
	}
	return true
}

func clientOrigin(c *gin.Context) (string, string) {
	return c.ClientIP(), c.GetHeader("User-Agent")
}

func respondLogin(c *gin.Context, login func(ctx context.Context) (*models.LoginResponse, error)) {
	res, err := login(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
