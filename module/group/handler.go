package group

import (
	"net/http"

	"github.com/gin-gonic/gin"

	midsec "QTalk/middleware/security"
	"QTalk/module/group/service"
	"QTalk/tools/errs"
)

type Handler struct {
	groups *service.Directory
}

func NewHandler(groups *service.Directory) *Handler {
	return &Handler{groups: groups}
}

func (h *Handler) Create(c *gin.Context) {
	var in struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Members     []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}
	g, err := h.groups.Create(c.Request.Context(), in.Name, in.Description, midsec.UserID(c), in.Members)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "group": g})
}

// Invite adds a user to the group's pending list. Any current member
// may invite.
func (h *Handler) Invite(c *gin.Context) {
	var in struct {
		GroupID string `json:"groupId"`
		UserID  string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}
	if err := h.groups.Invite(c.Request.Context(), in.GroupID, in.UserID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Accept(c *gin.Context) {
	var in struct {
		GroupID string `json:"groupId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}
	g, err := h.groups.AcceptInvite(c.Request.Context(), in.GroupID, midsec.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "group": g})
}

func (h *Handler) Reject(c *gin.Context) {
	var in struct {
		GroupID string `json:"groupId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}
	if err := h.groups.RejectInvite(c.Request.Context(), in.GroupID, midsec.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// List returns every group the caller belongs to or is invited to.
func (h *Handler) List(c *gin.Context) {
	gs, err := h.groups.ListForUser(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "groups": gs})
}

func fail(c *gin.Context, err error) {
	c.JSON(errs.Code(err), gin.H{"success": false, "error": err.Error()})
}
