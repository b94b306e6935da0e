package main

import (
	"net/http"
	"strconv"

	"github.com/abdoul9859/techplus/models"
	"github.com/gin-gonic/gin"
)

func intParam(c *gin.Context, name string) (int, bool) {
	value, err := strconv.Atoi(c.Param(name))
	if err != nil || value <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid " + name})
		return 0, false
	}
	return value, true
}

func intQuery(c *gin.Context, name string, def int) int {
	value, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return value
}

func listClientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", 100)
		offset := intQuery(c, "skip", 0)
		clients, total, err := models.GetClients(c.Request.Context(), c.Query("search"), limit, offset)
		if err != nil {
			respondError(c, "clients", "listClientsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": clients, "total": total})
	}
}

func getClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		client, err := models.GetClientById(c.Request.Context(), id)
		if err != nil {
			respondError(c, "clients", "getClientHandler", err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func createClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		client, err := models.CreateClient(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "clients", "createClientHandler", err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func updateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		client, err := models.UpdateClient(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "clients", "updateClientHandler", err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func deleteClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteClient(c.Request.Context(), id); err != nil {
			respondError(c, "clients", "deleteClientHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Client supprimé avec succès"})
	}
}
