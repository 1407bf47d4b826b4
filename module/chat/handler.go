package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	midsec "QTalk/middleware/security"
	"QTalk/module/chat/service"
	"QTalk/tools/errs"
)

type Handler struct {
	conv *service.Conversations
}

func NewHandler(conv *service.Conversations) *Handler {
	return &Handler{conv: conv}
}

// SendDirect posts a one-to-one message to the user in the path.
func (h *Handler) SendDirect(c *gin.Context) {
	var in service.SendInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}
	if in.ClientMsgID == "" {
		in.ClientMsgID = uuid.NewString()
	}
	msg, err := h.conv.SendDirect(c.Request.Context(), midsec.UserID(c), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

func (h *Handler) SendGroup(c *gin.Context) {
	var in service.SendInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}
	if in.ClientMsgID == "" {
		in.ClientMsgID = uuid.NewString()
	}
	msg, err := h.conv.SendGroup(c.Request.Context(), midsec.UserID(c), c.Param("groupId"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

// Conversation returns the full history with the user in the path and
// marks their messages read as a side effect.
func (h *Handler) Conversation(c *gin.Context) {
	msgs, err := h.conv.FetchConversation(c.Request.Context(), midsec.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.conv.MarkRead(c.Request.Context(), midsec.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) GroupMessages(c *gin.Context) {
	msgs, err := h.conv.GroupMessages(c.Request.Context(), midsec.UserID(c), c.Param("groupId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

// ListUsers is the roster endpoint: everyone but the caller, with
// unseen counts keyed by sender.
func (h *Handler) ListUsers(c *gin.Context) {
	roster, err := h.conv.ListUsers(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": roster.Users, "unseenMessages": roster.Unseen})
}

func fail(c *gin.Context, err error) {
	c.JSON(errs.Code(err), gin.H{"success": false, "error": err.Error()})
}
