package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/edulink/classchat/internal/auth"
	"github.com/edulink/classchat/internal/blob"
	"github.com/edulink/classchat/internal/chat"
	"github.com/edulink/classchat/internal/proto"
	"github.com/edulink/classchat/internal/service/contacts"
	"github.com/edulink/classchat/internal/store"
)

// maxAttachmentBytes caps a single attachment upload.
const maxAttachmentBytes = 32 << 20

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	authService *auth.Service
	chatService *chat.Service
	contacts    *contacts.Service
	blobs       blob.Store
	users       store.UserStore
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(
	authService *auth.Service,
	chatService *chat.Service,
	contactsService *contacts.Service,
	blobs blob.Store,
	users store.UserStore,
	logger *zerolog.Logger,
) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		chatService: chatService,
		contacts:    contactsService,
		blobs:       blobs,
		users:       users,
		log:         logger,
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the wire form of the authenticated user.
type UserResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ContactResponse is the wire form of a resolved contact.
type ContactResponse struct {
	UserID      int64  `json:"user_id,omitempty"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role,omitempty"`
	ScopeType   string `json:"scope_type"`
	Scope       string `json:"scope"`
	Online      bool   `json:"online"`
}

// SendMessageRequest creates a message. Body may be empty only when an
// attachment reference is present.
type SendMessageRequest struct {
	Scope      string                `json:"scope" binding:"required"`
	Body       string                `json:"body"`
	Attachment *proto.AttachmentData `json:"attachment"`
}

// HistoryResponse carries an ordered page of messages for a scope.
type HistoryResponse struct {
	Scope    string               `json:"scope"`
	Messages []proto.EventMessage `json:"messages"`
}

// UploadResponse is the (url, kind) pair returned by the blob store.
type UploadResponse struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

// Login handles user login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Token: token,
		User: UserResponse{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			Role:        string(user.Role),
		},
	})
}

// Contacts resolves the caller's visible contact list by role.
// GET /api/contacts
func (h *APIHandlers) Contacts(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	resolved, err := h.contacts.Resolve(c.Request.Context(), user)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("resolve contacts")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]ContactResponse, 0, len(resolved))
	for _, contact := range resolved {
		out = append(out, ContactResponse{
			UserID:      contact.UserID,
			DisplayName: contact.DisplayName,
			Role:        string(contact.Role),
			ScopeType:   string(contact.ScopeType),
			Scope:       contact.Scope.Key(),
			Online:      contact.Online,
		})
	}
	c.JSON(http.StatusOK, out)
}

// SendMessage is the synchronous create: it returns the authoritative
// message with store-assigned id and timestamp. The transport offers no
// idempotency key; duplicate suppression is the client engine's job.
// POST /api/messages
func (h *APIHandlers) SendMessage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	scope, err := chat.ParseScopeKey(req.Scope)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed scope", Code: chat.ErrCodeBadRequest})
		return
	}

	var att *store.Attachment
	if req.Attachment != nil {
		att = &store.Attachment{
			URL:  req.Attachment.URL,
			Kind: store.MediaKind(req.Attachment.Kind),
		}
	}

	msg, err := h.chatService.Send(c.Request.Context(), user, scope, req.Body, att)
	if err != nil {
		h.respondChatError(c, err)
		return
	}

	c.JSON(http.StatusCreated, messageToWire(msg))
}

// History returns messages for a scope in store order; used for the
// initial load and for reconciling after a disconnect.
// GET /api/messages?scope=...&since=...&limit=...
func (h *APIHandlers) History(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	scopeKey := c.Query("scope")
	scope, err := chat.ParseScopeKey(scopeKey)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed scope", Code: chat.ErrCodeBadRequest})
		return
	}

	sinceID, _ := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	messages, err := h.chatService.History(c.Request.Context(), user.ID, scope, sinceID, limit)
	if err != nil {
		h.respondChatError(c, err)
		return
	}

	out := make([]proto.EventMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageToWire(msg))
	}
	c.JSON(http.StatusOK, HistoryResponse{Scope: scope.Key(), Messages: out})
}

// Upload stores a binary payload and returns its (url, kind) reference.
// If storage fails nothing is persisted and the send must be abandoned.
// POST /api/attachments?kind=IMAGE
func (h *APIHandlers) Upload(c *gin.Context) {
	kind := store.MediaKind(c.Query("kind"))
	if !store.ValidMediaKind(kind) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown media kind", Code: chat.ErrCodeBadRequest})
		return
	}

	payload := http.MaxBytesReader(c.Writer, c.Request.Body, maxAttachmentBytes)
	url, stored, err := h.blobs.Store(c.Request.Context(), payload, kind)
	if err != nil {
		h.log.Error().Err(err).Msg("attachment upload failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "upload failed", Code: chat.ErrCodeUploadFailed})
		return
	}

	c.JSON(http.StatusCreated, UploadResponse{URL: url, Kind: string(stored)})
}

func (h *APIHandlers) currentUser(c *gin.Context) (*store.User, bool) {
	userID := c.GetInt64(ContextKeyUserID)
	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("token user lookup failed")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unknown user"})
		c.Abort()
		return nil, false
	}
	return user, true
}

func (h *APIHandlers) respondChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrUnauthorizedScope):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "scope not accessible", Code: chat.ErrCodeUnauthorizedScope})
	case errors.Is(err, chat.ErrBadRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: chat.ErrCodeBadRequest})
	default:
		h.log.Error().Err(err).Msg("chat operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
