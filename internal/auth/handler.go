package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/auth/token"
	"github.com/campus-hub/backend/internal/middleware"
	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/queue"
	"github.com/campus-hub/backend/pkg/response"
	"github.com/campus-hub/backend/pkg/storage"
	"github.com/campus-hub/backend/pkg/utils"
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
)

// EmailQueue hands transactional emails to the worker.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// ImageStore stores uploaded pictures.
type ImageStore interface {
	PutImage(ctx context.Context, folder, owner string, r io.Reader, filename, contentType string) (url, key string, err error)
	DeleteObject(ctx context.Context, key string) error
}

// SignupRequest is the body for POST /api/user/signup.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
}

// LoginRequest is the body for POST /api/user/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Options carries the settings the handler needs from config.
type Options struct {
	ClientURL    string
	CookieSecure bool
}

// Handler handles user HTTP endpoints.
type Handler struct {
	users  Store
	jwt    *token.JWTService
	emails EmailQueue
	images ImageStore
	google GoogleVerifier
	opts   Options
	logger *zap.Logger
}

// NewHandler creates an auth handler. emails and images may be nil.
func NewHandler(users Store, jwt *token.JWTService, emails EmailQueue, images ImageStore, google GoogleVerifier, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, jwt: jwt, emails: emails, images: images, google: google, opts: opts, logger: logger}
}

// RegisterRoutes mounts the /api/user routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.POST("/signup", h.Signup)
	rg.POST("/login", h.Login)
	rg.GET("/logout", h.Logout)
	rg.POST("/verify-email", h.VerifyEmail)
	rg.POST("/forgot-password", h.ForgotPassword)
	rg.POST("/reset-password/:token", h.ResetPassword)
	rg.POST("/google", h.GoogleLogin)
	rg.GET("/check-auth", authMW, h.CheckAuth)
	rg.GET("/user", authMW, h.Search)
	rg.PATCH("/profile-picture", authMW, h.UpdateProfilePicture)
}

func (h *Handler) setSession(c *gin.Context, u *models.User) error {
	tok, err := h.jwt.Generate(u.ID, u.Email, string(u.Role))
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CookieName, tok, int(h.jwt.TTL().Seconds()), "/", "", h.opts.CookieSecure, true)
	return nil
}

func (h *Handler) enqueueEmail(ctx context.Context, p queue.EmailPayload) {
	if h.emails == nil {
		h.logger.Debug("email queue not configured, skipping", zap.String("template", p.Template))
		return
	}
	if err := h.emails.EnqueueEmail(ctx, p); err != nil {
		h.logger.Warn("enqueue email failed", zap.Error(err), zap.String("template", p.Template), zap.String("to", p.RecipientEmail))
	}
}

// Signup handles POST /signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "All fields are required")
		return
	}
	role := models.RoleStudent
	if req.Role != "" && models.Role(req.Role) != models.RoleStudent {
		response.BadRequest(c, "invalid role")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	code, err := utils.VerificationCode()
	if err != nil {
		response.Internal(c, "failed to generate verification code")
		return
	}
	expires := time.Now().Add(verificationTTL)
	user := &models.User{
		Email:                      strings.TrimSpace(req.Email),
		PasswordHash:               hash,
		Name:                       req.Name,
		Role:                       role,
		AuthProvider:               models.ProviderLocal,
		VerificationToken:          &code,
		VerificationTokenExpiresAt: &expires,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			response.BadRequest(c, "User already exists")
			return
		}
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}
	if err := h.setSession(c, user); err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.enqueueEmail(c.Request.Context(), queue.EmailPayload{
		Template:       queue.EmailVerification,
		RecipientEmail: user.Email,
		RecipientName:  user.Name,
		Data:           map[string]string{"code": code},
	})
	response.Created(c, "User created successfully", user)
}

// VerifyEmail handles POST /verify-email.
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid or expired verification code")
		return
	}
	ctx := c.Request.Context()
	user, err := h.users.GetByVerificationCode(ctx, strings.TrimSpace(req.Code))
	if errors.Is(err, ErrUserNotFound) {
		response.BadRequest(c, "Invalid or expired verification code")
		return
	}
	if err != nil {
		h.logger.Error("lookup verification code failed", zap.Error(err))
		response.Internal(c, "failed to verify email")
		return
	}
	user, err = h.users.MarkVerified(ctx, user.ID)
	if err != nil {
		h.logger.Error("mark verified failed", zap.Error(err))
		response.Internal(c, "failed to verify email")
		return
	}
	h.enqueueEmail(ctx, queue.EmailPayload{
		Template:       queue.EmailWelcome,
		RecipientEmail: user.Email,
		RecipientName:  user.Name,
		Data:           map[string]string{"clientUrl": h.opts.ClientURL},
	})
	response.OKMessage(c, "Email verified successfully", user)
}

// Login handles POST /login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid credentials")
		return
	}
	ctx := c.Request.Context()
	user, err := h.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		h.logger.Error("lookup user failed", zap.Error(err))
		response.Internal(c, "failed to login")
		return
	}
	if user == nil || !utils.CheckPassword(req.Password, user.PasswordHash) {
		response.BadRequest(c, "Invalid credentials")
		return
	}
	user, err = h.users.RecordLogin(ctx, user.ID, true)
	if err != nil {
		h.logger.Error("record login failed", zap.Error(err))
		response.Internal(c, "failed to login")
		return
	}
	if err := h.setSession(c, user); err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OKMessage(c, "Logged in successfully", user)
}

// Logout handles GET /logout.
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CookieName, "", -1, "/", "", h.opts.CookieSecure, true)
	response.OKMessage(c, "Logged out successfully", nil)
}

// ForgotPassword handles POST /forgot-password.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email is required")
		return
	}
	ctx := c.Request.Context()
	user, err := h.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, ErrUserNotFound) {
		response.BadRequest(c, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("lookup user failed", zap.Error(err))
		response.Internal(c, "failed to start password reset")
		return
	}
	resetToken, err := utils.RandomHex(20)
	if err != nil {
		response.Internal(c, "failed to generate reset token")
		return
	}
	if err := h.users.SetResetToken(ctx, user.ID, resetToken, time.Now().Add(resetTTL)); err != nil {
		h.logger.Error("store reset token failed", zap.Error(err), zap.String("user_id", user.ID.String()))
		response.Internal(c, "failed to start password reset")
		return
	}
	h.enqueueEmail(ctx, queue.EmailPayload{
		Template:       queue.EmailPasswordReset,
		RecipientEmail: user.Email,
		RecipientName:  user.Name,
		Data:           map[string]string{"resetUrl": ResetURL(h.opts.ClientURL, resetToken)},
	})
	response.OKMessage(c, "Password reset link send to your email", nil)
}

// ResetURL is the frontend link embedded in password reset emails.
func ResetURL(clientURL, resetToken string) string {
	return strings.TrimRight(clientURL, "/") + "/#/auth/reset-password/" + resetToken
}

// ResetPassword handles POST /reset-password/:token.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "password must be at least 6 characters")
		return
	}
	ctx := c.Request.Context()
	user, err := h.users.GetByResetToken(ctx, c.Param("token"))
	if errors.Is(err, ErrUserNotFound) {
		response.BadRequest(c, "Invalid or expired reset token")
		return
	}
	if err != nil {
		h.logger.Error("lookup reset token failed", zap.Error(err))
		response.Internal(c, "failed to reset password")
		return
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	if err := h.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		h.logger.Error("update password failed", zap.Error(err), zap.String("user_id", user.ID.String()))
		response.Internal(c, "failed to reset password")
		return
	}
	h.enqueueEmail(ctx, queue.EmailPayload{
		Template:       queue.EmailResetSuccess,
		RecipientEmail: user.Email,
		RecipientName:  user.Name,
	})
	response.OKMessage(c, "Password reset successful", nil)
}

// GoogleLogin handles POST /google with a Google ID token.
func (h *Handler) GoogleLogin(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Token missing")
		return
	}
	identity, err := h.google.Verify(req.Token)
	if err != nil {
		h.logger.Warn("google token rejected", zap.Error(err))
		response.BadRequest(c, "Google authentication failed")
		return
	}
	if !identity.EmailVerified {
		response.BadRequest(c, "Google email not verified")
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByEmail(ctx, identity.Email)
	if errors.Is(err, ErrUserNotFound) {
		user, err = h.createGoogleUser(ctx, identity)
	}
	if err != nil {
		h.logger.Error("google sign-in failed", zap.Error(err), zap.String("email", identity.Email))
		response.Internal(c, "Google authentication failed")
		return
	}
	user, err = h.users.RecordLogin(ctx, user.ID, false)
	if err != nil {
		h.logger.Error("record login failed", zap.Error(err))
		response.Internal(c, "Google authentication failed")
		return
	}
	if err := h.setSession(c, user); err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OKMessage(c, "Google login successful", user)
}

func (h *Handler) createGoogleUser(ctx context.Context, id *GoogleIdentity) (*models.User, error) {
	random, err := utils.RandomHex(16)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(random)
	if err != nil {
		return nil, err
	}
	name := id.Name
	if name == "" {
		name = strings.Split(id.Email, "@")[0]
	}
	u := &models.User{
		Email:        id.Email,
		PasswordHash: hash,
		Name:         name,
		Role:         models.RoleStudent,
		IsVerified:   true,
		AuthProvider: models.ProviderGoogle,
	}
	if err := h.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CheckAuth handles GET /check-auth.
func (h *Handler) CheckAuth(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.UserID(c))
	if errors.Is(err, ErrUserNotFound) {
		response.Unauthorized(c, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("load user failed", zap.Error(err))
		response.Internal(c, "failed to load user")
		return
	}
	response.OK(c, user)
}

// Search handles GET /user?search=.
func (h *Handler) Search(c *gin.Context) {
	users, err := h.users.Search(c.Request.Context(), strings.TrimSpace(c.Query("search")), middleware.UserID(c))
	if err != nil {
		h.logger.Error("search users failed", zap.Error(err))
		response.Internal(c, "Failed to fetch users")
		return
	}
	response.OK(c, users)
}

// UpdateProfilePicture handles PATCH /profile-picture (multipart field "profilePic").
func (h *Handler) UpdateProfilePicture(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "media storage not configured")
		return
	}
	fh, err := c.FormFile("profilePic")
	if err != nil {
		response.BadRequest(c, "Provide profilePic as a multipart file")
		return
	}
	if fh.Size > storage.MaxImageSize {
		response.BadRequest(c, "Invalid file (max 5MB, images only)")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "Invalid file (max 5MB, images only)")
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	current, err := h.users.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		response.NotFound(c, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("load user failed", zap.Error(err))
		response.Internal(c, "failed to update profile picture")
		return
	}

	url, key, err := h.images.PutImage(ctx, storage.FolderProfiles, userID.String(), f, fh.Filename, fh.Header.Get("Content-Type"))
	if errors.Is(err, storage.ErrUnsupportedImage) || errors.Is(err, storage.ErrImageTooLarge) {
		response.BadRequest(c, "Invalid file (max 5MB, images only)")
		return
	}
	if err != nil {
		h.logger.Error("upload profile picture failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "Failed to upload image")
		return
	}
	user, err := h.users.UpdateProfilePic(ctx, userID, url, key)
	if err != nil {
		h.logger.Error("save profile picture failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to update profile picture")
		return
	}
	if current.ProfilePicKey != nil && *current.ProfilePicKey != "" {
		if err := h.images.DeleteObject(ctx, *current.ProfilePicKey); err != nil {
			h.logger.Warn("delete previous profile picture failed", zap.Error(err), zap.String("key", *current.ProfilePicKey))
		}
	}
	response.OKMessage(c, "Profile picture updated", user)
}
