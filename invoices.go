package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/abdoul9859/techplus/models"
	"github.com/abdoul9859/techplus/utils"
	"github.com/gin-gonic/gin"
)

func invoiceFilterFromQuery(c *gin.Context) models.InvoiceFilter {
	filter := models.InvoiceFilter{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		ClientId: intQuery(c, "client_id", 0),
		Limit:    intQuery(c, "limit", 50),
		Offset:   intQuery(c, "skip", 0),
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.DateTo = &t
		}
	}
	return filter
}

func listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := invoiceFilterFromQuery(c)
		invoices, _, err := models.GetInvoices(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "invoices", "listInvoicesHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	}
}

// paginatedInvoicesHandler memoizes pages; any invoice write clears the
// cache so a page never shows pre-write data.
func paginatedInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := invoiceFilterFromQuery(c)
		key := utils.CacheKey(
			filter.Search, filter.Status,
			strconv.Itoa(filter.ClientId),
			c.Query("date_from"), c.Query("date_to"),
			strconv.Itoa(filter.Limit), strconv.Itoa(filter.Offset),
		)
		if cached, ok := models.InvoiceListCache.Get(key); ok {
			c.JSON(http.StatusOK, cached)
			return
		}

		invoices, total, err := models.GetInvoices(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "invoices", "paginatedInvoicesHandler", err)
			return
		}
		response := gin.H{
			"items": invoices,
			"total": total,
			"limit": filter.Limit,
			"skip":  filter.Offset,
		}
		models.InvoiceListCache.Set(key, response)
		c.JSON(http.StatusOK, response)
	}
}

func nextInvoiceNumberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		number, err := models.NextInvoiceNumber(c.Request.Context())
		if err != nil {
			respondError(c, "invoices", "nextInvoiceNumberHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"invoice_number": number})
	}
}

func invoiceStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := models.GetInvoiceStats(c.Request.Context())
		if err != nil {
			respondError(c, "invoices", "invoiceStatsHandler", err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func getInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		invoice, err := models.GetInvoiceById(c.Request.Context(), id)
		if err != nil {
			respondError(c, "invoices", "getInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "invoices", "createInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func updateInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input models.NewInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		invoice, err := models.UpdateInvoice(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "invoices", "updateInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func deleteInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteInvoice(c.Request.Context(), id); err != nil {
			respondError(c, "invoices", "deleteInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Facture supprimée avec succès"})
	}
}

type invoiceStatusInput struct {
	Status string `json:"status" binding:"required"`
}

func updateInvoiceStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input invoiceStatusInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		if err := models.UpdateInvoiceStatus(c.Request.Context(), id, input.Status); err != nil {
			respondError(c, "invoices", "updateInvoiceStatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Statut mis à jour avec succès"})
	}
}

func addInvoicePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input models.NewInvoicePayment
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		payment, err := models.AddInvoicePayment(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "invoices", "addInvoicePaymentHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":    "Paiement ajouté avec succès",
			"payment_id": payment.ID,
		})
	}
}

func createDeliveryNoteFromInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		note, err := models.CreateDeliveryNoteFromInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, "invoices", "createDeliveryNoteFromInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":              "Bon de livraison créé",
			"delivery_note_id":     note.ID,
			"delivery_note_number": note.DeliveryNoteNumber,
		})
	}
}
