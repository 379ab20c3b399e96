package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"renovix-backend/internal/shared/server/middleware"
	"renovix-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint, a small identity probe so
// clients can tell which identity their requests carry.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	respond.JSON(c, http.StatusOK, gin.H{
		"userId":    userID,
		"anonymous": userID == "",
		"guest":     strings.HasPrefix(userID, "guest:"),
	})
}
