package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-realtime/internal/middleware"
	"chat-realtime/internal/services"
)

type UserHandler struct {
	directory *services.Directory
}

func NewUserHandler(directory *services.Directory) *UserHandler {
	return &UserHandler{directory: directory}
}

func (h *UserHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/search", h.Search)
	rg.GET("/:user_id", h.Get)
}

func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	user, err := h.directory.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.directory.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Me returns the directory entry of the authenticated caller.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.directory.Get(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "email": c.GetString(middleware.EmailKey)})
}
