package main

import (
	"net/http"

	"github.com/abdoul9859/techplus/models"
	"github.com/abdoul9859/techplus/utils"
	"github.com/gin-gonic/gin"
)

type loginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input loginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}

		user, err := models.Authenticate(c.Request.Context(), input.Username, input.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid credentials"})
			return
		}

		token, err := utils.JwtGenerate(user.ID, user.Role)
		if err != nil {
			respondError(c, "auth", "loginHandler", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token": token,
			"token_type":   "bearer",
			"user":         user,
		})
	}
}

func currentUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "unauthorized"})
			return
		}
		user, err := models.GetUserById(c.Request.Context(), userId)
		if err != nil {
			respondError(c, "auth", "currentUserHandler", err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
