package subscription

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/taskflow/core/internal/pkg/response"
)

type subscribeDTO struct {
	Email string `json:"email" binding:"required,email"`
}

type unsubscribeDTO struct {
	Email string `json:"email" binding:"required"`
}

// Handler exposes the subscription lifecycle over HTTP. Query parameters
// arrive percent-decoded by the router, matching the encoding the notifier
// applies when building links.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/subscribe")
	g.POST("", h.subscribe)
	g.GET("/verify", h.verify)           // ?email=...&code=...
	g.GET("/unsubscribe", h.unsubscribe) // ?token=... | legacy ?email=<base64>
	g.POST("/unsubscribe", h.unsubscribeByAddress)
	g.GET("/status", h.status)
}

func (h *Handler) subscribe(c *gin.Context) {
	var dto subscribeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.UnprocessableEntity(c, "Failed to subscribe. Email may be invalid.")
		return
	}
	err := h.svc.Subscribe(dto.Email)
	switch {
	case errors.Is(err, ErrInvalidEmail):
		response.UnprocessableEntity(c, "Failed to subscribe. Email may be invalid.")
	case errors.Is(err, ErrAlreadySubscribed):
		response.Conflict(c, "This email is already subscribed.")
	case err != nil:
		response.InternalError(c, err)
	default:
		response.Created(c, gin.H{
			"message": "A verification email is on its way. Click the link in it to confirm your subscription.",
		})
	}
}

func (h *Handler) verify(c *gin.Context) {
	email := c.Query("email")
	code := c.Query("code")
	if email == "" || code == "" {
		response.BadRequest(c, "Invalid verification link. Email or code is missing.")
		return
	}
	err := h.svc.Verify(email, code)
	switch {
	case errors.Is(err, ErrEmptyInput):
		response.BadRequest(c, "Invalid verification link. Email or code is missing.")
	case errors.Is(err, ErrNotPending):
		response.NotFoundMsg(c, "Invalid or expired verification link. Please try subscribing again.")
	case errors.Is(err, ErrCodeMismatch):
		response.BadRequest(c, "Invalid verification code. Please check the link in your email.")
	case errors.Is(err, ErrCodeExpired):
		response.Gone(c, "Verification link has expired. Please subscribe again to receive a new verification email.")
	case err != nil:
		response.InternalError(c, err)
	default:
		response.OK(c, gin.H{
			"message": "Your email subscription has been successfully verified! You will now receive task reminders.",
		})
	}
}

// unsubscribe handles reminder-email links: the token form, and the legacy
// form carrying a base64-encoded address that older emails still use.
func (h *Handler) unsubscribe(c *gin.Context) {
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		h.unsubscribeByToken(c, token)
		return
	}
	if encoded := c.Query("email"); encoded != "" {
		h.unsubscribeLegacy(c, encoded)
		return
	}
	response.BadRequest(c, "Invalid unsubscribe link. Missing required parameters.")
}

func (h *Handler) unsubscribeByToken(c *gin.Context, token string) {
	err := h.svc.UnsubscribeByToken(token)
	switch {
	case errors.Is(err, ErrInvalidToken):
		response.NotFoundMsg(c, "Invalid or expired unsubscribe link.")
	case errors.Is(err, ErrTokenExpired):
		response.Gone(c, "This unsubscribe link has expired. Please use a more recent email to unsubscribe.")
	case errors.Is(err, ErrNotSubscribed):
		response.NotFoundMsg(c, "Email address not found in our subscriber list or already unsubscribed.")
	case err != nil:
		response.InternalError(c, err)
	default:
		response.OK(c, gin.H{"message": "You have been successfully unsubscribed from task reminder emails."})
	}
}

func (h *Handler) unsubscribeLegacy(c *gin.Context, encoded string) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		response.BadRequest(c, "Invalid unsubscribe link format.")
		return
	}
	email := string(decoded)
	if validate.Var(strings.TrimSpace(email), "required,email") != nil {
		response.BadRequest(c, "Invalid email address in unsubscribe link.")
		return
	}
	h.finishUnsubscribe(c, h.svc.UnsubscribeByAddress(email))
}

func (h *Handler) unsubscribeByAddress(c *gin.Context) {
	var dto unsubscribeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "An email address is required.")
		return
	}
	h.finishUnsubscribe(c, h.svc.UnsubscribeByAddress(dto.Email))
}

func (h *Handler) finishUnsubscribe(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotSubscribed), errors.Is(err, ErrEmptyInput):
		response.NotFoundMsg(c, "Email address not found in our subscriber list or already unsubscribed.")
	case err != nil:
		response.InternalError(c, err)
	default:
		response.OK(c, gin.H{"message": "You have been successfully unsubscribed from task reminder emails."})
	}
}

func (h *Handler) status(c *gin.Context) {
	response.OK(c, gin.H{
		"verified_subscribers":  len(h.svc.ListVerified()),
		"pending_verifications": len(h.svc.ListPending()),
	})
}
