package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/allcitylocks/locksmith_backend/config"
	"github.com/allcitylocks/locksmith_backend/models"
	"github.com/allcitylocks/locksmith_backend/pdf"
	"github.com/allcitylocks/locksmith_backend/utils"
)

// respondModelError maps model-layer errors onto HTTP statuses. Persistence
// failures are logged server-side and never leak driver details to the client.
func respondModelError(c *gin.Context, funcName string, err error) {
	logger := config.GetLogger()
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, utils.ErrorPersistence):
		config.LogError(logger, "handlers.go", funcName, "persistence", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func respondBindError(c *gin.Context, err error) {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// ---- auth ----

type signinInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func signinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input signinInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		info, err := models.Login(c.Request.Context(), input.Username, input.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

type changePasswordInput struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

func changePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input changePasswordInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		user, err := models.ChangePassword(c.Request.Context(), input.OldPassword, input.NewPassword)
		if err != nil {
			respondModelError(c, "changePasswordHandler", err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// ---- customers ----

func createCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		customer, err := models.CreateCustomer(c.Request.Context(), &input)
		if err != nil {
			respondModelError(c, "createCustomerHandler", err)
			return
		}
		c.JSON(http.StatusCreated, customer)
	}
}

func updateCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
		if err != nil {
			respondModelError(c, "updateCustomerHandler", err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}

func deleteCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		customer, err := models.DeleteCustomer(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "deleteCustomerHandler", err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}

func getCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		customer, err := models.GetCustomer(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "getCustomerHandler", err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}

func listCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := models.GetAllCustomers(c.Request.Context())
		if err != nil {
			respondModelError(c, "listCustomersHandler", err)
			return
		}
		c.JSON(http.StatusOK, customers)
	}
}

// ---- services ----

func createServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewService
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		service, err := models.CreateService(c.Request.Context(), &input)
		if err != nil {
			respondModelError(c, "createServiceHandler", err)
			return
		}
		c.JSON(http.StatusCreated, service)
	}
}

func updateServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewService
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		service, err := models.UpdateService(c.Request.Context(), id, &input)
		if err != nil {
			respondModelError(c, "updateServiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, service)
	}
}

func deleteServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		service, err := models.DeleteService(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "deleteServiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, service)
	}
}

func getServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		service, err := models.GetService(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "getServiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, service)
	}
}

func listServicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		services, err := models.GetAllServices(c.Request.Context())
		if err != nil {
			respondModelError(c, "listServicesHandler", err)
			return
		}
		c.JSON(http.StatusOK, services)
	}
}

// ---- invoices ----

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), &input)
		if err != nil {
			respondModelError(c, "createInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func updateInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		invoice, err := models.UpdateInvoice(c.Request.Context(), id, &input)
		if err != nil {
			respondModelError(c, "updateInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func deleteInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := models.DeleteInvoice(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "deleteInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func getInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := models.GetInvoice(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "getInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := models.GetAllInvoices(c.Request.Context())
		if err != nil {
			respondModelError(c, "listInvoicesHandler", err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

type payInvoiceInput struct {
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

func payInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input payInvoiceInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		invoice, err := models.MarkInvoicePaid(c.Request.Context(), id, input.PaymentMethod)
		if err != nil {
			respondModelError(c, "payInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func listInvoicePaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		payments, err := models.GetInvoicePayments(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "listInvoicePaymentsHandler", err)
			return
		}
		c.JSON(http.StatusOK, payments)
	}
}

func invoicePdfHandler(renderer pdf.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := models.GetInvoice(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "invoicePdfHandler", err)
			return
		}
		html, err := pdf.BuildInvoiceHTML(invoice)
		if err != nil {
			respondModelError(c, "invoicePdfHandler", err)
			return
		}
		doc, err := renderer.RenderHTML(c.Request.Context(), html)
		if err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "invoicePdfHandler", "RenderHTML", nil, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "pdf rendering failed"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="invoice-`+strconv.Itoa(id)+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", doc)
	}
}

// ---- quotes ----

func createQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		quote, err := models.CreateQuote(c.Request.Context(), &input)
		if err != nil {
			respondModelError(c, "createQuoteHandler", err)
			return
		}
		c.JSON(http.StatusCreated, quote)
	}
}

func updateQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		quote, err := models.UpdateQuote(c.Request.Context(), id, &input)
		if err != nil {
			respondModelError(c, "updateQuoteHandler", err)
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}

func deleteQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		quote, err := models.DeleteQuote(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "deleteQuoteHandler", err)
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}

func getQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		quote, err := models.GetQuote(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "getQuoteHandler", err)
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}

func listQuotesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := models.GetAllQuotes(c.Request.Context())
		if err != nil {
			respondModelError(c, "listQuotesHandler", err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

type convertQuoteInput struct {
	DueDate string `json:"dueDate"`
}

func convertQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input convertQuoteInput
		// body is optional: conversion without a due date is valid
		if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
			respondBindError(c, err)
			return
		}
		var dueDate *time.Time
		if input.DueDate != "" {
			parsed, err := utils.ParseCalendarDate(input.DueDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dueDate"})
				return
			}
			dueDate = &parsed
		}
		invoice, err := models.ConvertQuoteToInvoice(c.Request.Context(), id, dueDate)
		if err != nil {
			respondModelError(c, "convertQuoteHandler", err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func rejectQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		quote, err := models.MarkQuoteRejected(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "rejectQuoteHandler", err)
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}

func quotePdfHandler(renderer pdf.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		quote, err := models.GetQuote(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, "quotePdfHandler", err)
			return
		}
		html, err := pdf.BuildQuoteHTML(quote)
		if err != nil {
			respondModelError(c, "quotePdfHandler", err)
			return
		}
		doc, err := renderer.RenderHTML(c.Request.Context(), html)
		if err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "quotePdfHandler", "RenderHTML", nil, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "pdf rendering failed"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="quote-`+strconv.Itoa(id)+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", doc)
	}
}

// ---- reporting ----

func summaryRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		parsed, err := utils.ParseCalendarDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return nil, nil, false
		}
		from = &parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := utils.ParseCalendarDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return nil, nil, false
		}
		to = &parsed
	}
	return from, to, true
}

func summaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := summaryRange(c)
		if !ok {
			return
		}
		summary, err := models.GetFinancialSummary(c.Request.Context(), from, to)
		if err != nil {
			respondModelError(c, "summaryHandler", err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func summaryExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := summaryRange(c)
		if !ok {
			return
		}
		file, err := models.ExportFinancialSummaryExcel(c.Request.Context(), from, to)
		if err != nil {
			respondModelError(c, "summaryExportHandler", err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="financial-summary.xlsx"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := file.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "summaryExportHandler", "file.Write", nil, err)
		}
	}
}

// ---- vin ----

func vinHandler(decoder *models.VinDecoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := decoder.Decode(c.Request.Context(), c.Param("vin"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// ---- maintenance ----

// sweepOverdueHandler is unauthenticated but guarded by a shared secret so a
// scheduler can call it without holding a user token.
func sweepOverdueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := os.Getenv("SWEEP_SECRET")
		if secret == "" || c.GetHeader("X-Sweep-Secret") != secret {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		result, err := models.SweepOverdueInvoices(c.Request.Context())
		if err != nil {
			respondModelError(c, "sweepOverdueHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
