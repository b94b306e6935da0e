package main

import (
	"net/http"

	"github.com/abdoul9859/techplus/models"
	"github.com/gin-gonic/gin"
)

func listDeliveryNotesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		notes, total, err := models.GetDeliveryNotes(c.Request.Context(),
			c.Query("status"), intQuery(c, "client_id", 0),
			intQuery(c, "limit", 50), intQuery(c, "skip", 0))
		if err != nil {
			respondError(c, "deliveryNotes", "listDeliveryNotesHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": notes, "total": total})
	}
}

func getDeliveryNoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		note, err := models.GetDeliveryNoteById(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deliveryNotes", "getDeliveryNoteHandler", err)
			return
		}
		c.JSON(http.StatusOK, note)
	}
}

type deliveryNoteStatusInput struct {
	Status string `json:"status" binding:"required"`
}

func updateDeliveryNoteStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input deliveryNoteStatusInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		if err := models.UpdateDeliveryNoteStatus(c.Request.Context(), id, input.Status); err != nil {
			respondError(c, "deliveryNotes", "updateDeliveryNoteStatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Statut mis à jour avec succès"})
	}
}

func deleteDeliveryNoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteDeliveryNote(c.Request.Context(), id); err != nil {
			respondError(c, "deliveryNotes", "deleteDeliveryNoteHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Bon de livraison supprimé avec succès"})
	}
}
