package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	paymentUC "github.com/tapcards/tap/internal/application/usecase/payment"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

type PaymentHandler struct {
	paymentUseCase *paymentUC.PaymentUseCase
	logger         logger.Logger
}

func NewPaymentHandler(uc *paymentUC.PaymentUseCase, log logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentUseCase: uc,
		logger:         log,
	}
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body", err))
		return false
	}
	return true
}

func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	var req PaymentIntentRequest
	if !bindJSON(c, &req) {
		return
	}
	intent, err := h.paymentUseCase.CreatePaymentIntent(c.Request.Context(), paymentUC.CreatePaymentIntentInput{
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (h *PaymentHandler) CreateSendMoneyIntent(c *gin.Context) {
	var req SendMoneyRequest
	if !bindJSON(c, &req) {
		return
	}
	intent, err := h.paymentUseCase.CreateSendMoneyIntent(c.Request.Context(), paymentUC.SendMoneyInput{
		Amount:         req.Amount,
		Currency:       req.Currency,
		RecipientEmail: req.RecipientEmail,
		Note:           req.Note,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (h *PaymentHandler) ConfirmApplePay(c *gin.Context) {
	var req ApplePayRequest
	if !bindJSON(c, &req) {
		return
	}
	intent, err := h.paymentUseCase.ConfirmApplePay(c.Request.Context(), paymentUC.ApplePayInput{
		PaymentMethodID: req.PaymentMethodID,
		Amount:          req.Amount,
		Currency:        req.Currency,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ApplePayResponse{Success: true, ClientSecret: intent.ClientSecret})
}

func (h *PaymentHandler) CreatePaymentMethod(c *gin.Context) {
	var req PaymentMethodRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.paymentUseCase.CreatePaymentMethod(c.Request.Context(), paymentUC.PaymentMethodInput{
		Type:      req.Type,
		CardToken: req.Card.Token,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *PaymentHandler) CreateInvoice(c *gin.Context) {
	var req InvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.paymentUseCase.CreateInvoice(c.Request.Context(), paymentUC.InvoiceInput{
		Amount:        req.Amount,
		Currency:      req.Currency,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Description:   req.Description,
		DueDate:       req.DueDate,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *PaymentHandler) CreateTerminalConnectionToken(c *gin.Context) {
	secret, err := h.paymentUseCase.CreateTerminalConnectionToken(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret})
}

func (h *PaymentHandler) CreateLocation(c *gin.Context) {
	var req LocationRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.paymentUseCase.CreateTerminalLocation(c.Request.Context(), paymentUC.LocationInput{
		BusinessName: req.BusinessName,
		Address:      req.Address,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, LocationResponse{LocationID: id, Success: true})
}
