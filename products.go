package main

import (
	"net/http"

	"github.com/abdoul9859/techplus/models"
	"github.com/gin-gonic/gin"
)

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.ProductFilter{
			Search:   c.Query("search"),
			Category: c.Query("category"),
			Brand:    c.Query("brand"),
			InStock:  c.Query("in_stock") == "true",
			Limit:    intQuery(c, "limit", 100),
			Offset:   intQuery(c, "skip", 0),
		}
		products, total, err := models.GetProducts(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "products", "listProductsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": products, "total": total})
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		product, err := models.GetProductById(c.Request.Context(), id)
		if err != nil {
			respondError(c, "products", "getProductHandler", err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "products", "createProductHandler", err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input models.UpdateProductInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "products", "updateProductHandler", err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func deleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteProduct(c.Request.Context(), id); err != nil {
			respondError(c, "products", "deleteProductHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Produit supprimé avec succès"})
	}
}

func scanBarcodeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "missing barcode"})
			return
		}
		result, err := models.ScanBarcode(c.Request.Context(), code)
		if err != nil {
			respondError(c, "products", "scanBarcodeHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listProductMovementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		movements, total, err := models.GetStockMovements(c.Request.Context(), id,
			intQuery(c, "limit", 100), intQuery(c, "skip", 0))
		if err != nil {
			respondError(c, "products", "listProductMovementsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": movements, "total": total})
	}
}

func getProductConditionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.GetProductConditions(c.Request.Context()))
	}
}

func setProductConditionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.ProductConditions
		if err := c.ShouldBindJSON(&input); err != nil {
			respondValidationError(c, err)
			return
		}
		conditions, err := models.SetProductConditions(c.Request.Context(), input)
		if err != nil {
			respondError(c, "products", "setProductConditionsHandler", err)
			return
		}
		c.JSON(http.StatusOK, conditions)
	}
}
