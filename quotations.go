package main

import (
	"net/http"

	"github.com/abdoul9859/techplus/models"
	"github.com/gin-gonic/gin"
)

func listQuotationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		quotations, total, err := models.GetQuotations(c.Request.Context(),
			c.Query("status"), intQuery(c, "client_id", 0),
			intQuery(c, "limit", 50), intQuery(c, "skip", 0))
		if err != nil {
			respondError(c, "quotations", "listQuotationsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": quotations, "total": total})
	}
}

func getQuotationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		quotation, err := models.GetQuotationById(c.Request.Context(), id)
		if err != nil {
			respondError(c, "quotations", "getQuotationHandler", err)
			return
		}
		c.JSON(http.StatusOK, quotation)
	}
}

func createQuotationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewQuotation
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		quotation, err := models.CreateQuotation(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "quotations", "createQuotationHandler", err)
			return
		}
		c.JSON(http.StatusOK, quotation)
	}
}

type quotationStatusInput struct {
	Status string `json:"status" binding:"required"`
}

func updateQuotationStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input quotationStatusInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		if err := models.UpdateQuotationStatus(c.Request.Context(), id, input.Status); err != nil {
			respondError(c, "quotations", "updateQuotationStatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Statut mis à jour avec succès"})
	}
}

func deleteQuotationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteQuotation(c.Request.Context(), id); err != nil {
			respondError(c, "quotations", "deleteQuotationHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Devis supprimé avec succès"})
	}
}
