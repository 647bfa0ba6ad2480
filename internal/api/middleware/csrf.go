package middleware

import (
	"bytes"
	"encoding/json"
	"guestbooklet/internal/auth"
	"guestbooklet/internal/models"
	"guestbooklet/internal/repository"
	"guestbooklet/internal/security"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CSRFHeader is the request header checked first for the token
const CSRFHeader = "X-CSRF-Token"

// csrfBody is the JSON body field checked when the header is absent
type csrfBody struct {
	CSRFToken string `json:"csrfToken"`
}

// CSRFMiddleware validates per-session anti-CSRF tokens on state-changing
// requests
type CSRFMiddleware struct {
	store     *security.CSRFTokenStore
	auditRepo repository.AuditLogRepository
}

// NewCSRFMiddleware creates a new CSRF middleware
func NewCSRFMiddleware(store *security.CSRFTokenStore, auditRepo repository.AuditLogRepository) *CSRFMiddleware {
	return &CSRFMiddleware{
		store:     store,
		auditRepo: auditRepo,
	}
}

// SessionKey derives the CSRF session key for a request: the authenticated
// user when present, otherwise the client IP plus a hash of its user agent
func SessionKey(c *gin.Context) string {
	if user := auth.GetUserFromContext(c); user != nil {
		return security.UserSessionKey(user.ID.String())
	}
	return security.AnonSessionKey(c.ClientIP(), c.GetHeader("User-Agent"))
}

// Require rejects state-changing requests without a valid CSRF token.
// GET, HEAD and OPTIONS are exempt. The token is read from the X-CSRF-Token
// header first, then from the csrfToken body field.
func (m *CSRFMiddleware) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		presented := c.GetHeader(CSRFHeader)
		if presented == "" {
			presented = m.tokenFromBody(c)
		}

		if presented == "" {
			m.reject(c, "csrf token missing")
			return
		}

		if !m.store.Validate(SessionKey(c), presented) {
			m.reject(c, "csrf token invalid")
			return
		}

		c.Next()
	}
}

// tokenFromBody reads the csrfToken field and restores the body for
// downstream binding
func (m *CSRFMiddleware) tokenFromBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var body csrfBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.CSRFToken
}

func (m *CSRFMiddleware) reject(c *gin.Context, reason string) {
	entry := &models.CreateAuditLogRequest{
		Action:      models.ActionCSRFRejected,
		Description: reason,
		IPAddress:   c.ClientIP(),
		Route:       c.FullPath(),
		UserAgent:   c.GetHeader("User-Agent"),
	}
	if err := m.auditRepo.Create(c.Request.Context(), entry); err != nil {
		log.Printf("Failed to create audit log: %v", err)
	}

	c.JSON(http.StatusForbidden, models.ErrorResponse{Error: reason})
	c.Abort()
}
