package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/premsagar786/printsmart/internal/admin"
)

type UserHandler struct {
	directory *admin.Directory
}

func NewUserHandler(directory *admin.Directory) *UserHandler {
	return &UserHandler{directory: directory}
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=4"`
}

type RotatePasswordRequest struct {
	Password string `json:"password" binding:"required,min=4"`
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.directory.ListAccounts()})
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.directory.CreateAccount(req.Username, req.Password); err != nil {
		if errors.Is(err, admin.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	username := c.Param("username")

	if err := h.directory.DeleteAccount(username); err != nil {
		switch {
		case errors.Is(err, admin.ErrAdminProtected):
			c.JSON(http.StatusConflict, gin.H{"error": "The admin account cannot be deleted."})
		case errors.Is(err, admin.ErrSelfDelete):
			c.JSON(http.StatusConflict, gin.H{"error": "You cannot delete your own account."})
		case errors.Is(err, admin.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found."})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *UserHandler) RotatePassword(c *gin.Context) {
	username := c.Param("username")

	var req RotatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.directory.RotateSecret(username, req.Password); err != nil {
		switch {
		case errors.Is(err, admin.ErrSelfEdit):
			c.JSON(http.StatusConflict, gin.H{"error": "You cannot edit your own account here. Use the change password screen."})
		case errors.Is(err, admin.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found."})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
