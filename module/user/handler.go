package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	midsec "QTalk/middleware/security"
	"QTalk/module/user/service"
	"QTalk/tools/errs"
)

type Handler struct {
	accounts *service.Accounts
}

func NewHandler(accounts *service.Accounts) *Handler {
	return &Handler{accounts: accounts}
}

func (h *Handler) Signup(c *gin.Context) {
	var in service.SignupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}
	res, err := h.accounts.Signup(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": res.User, "token": res.Token})
}

func (h *Handler) Login(c *gin.Context) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}
	res, err := h.accounts.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": res.User, "token": res.Token})
}

// Check confirms the token is valid and returns the caller's record.
func (h *Handler) Check(c *gin.Context) {
	u, err := h.accounts.GetByID(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var in service.ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}
	u, err := h.accounts.UpdateProfile(c.Request.Context(), midsec.UserID(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func fail(c *gin.Context, err error) {
	c.JSON(errs.Code(err), gin.H{"success": false, "error": err.Error()})
}
