package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tapcards/tap/internal/application/service"
	"github.com/tapcards/tap/internal/domain/payment"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

const (
	sourceApp       = "tap-app"
	sourceSendMoney = "tap-app-send-money"
	sourceInvoice   = "tap-app-invoice"

	defaultDaysUntilDue   = 30
	defaultLocationName   = "Business Location"
	dueDateLayout         = "2006-01-02"
	paymentMethodTypeCard = "card"
)

var tracer = otel.Tracer("payment_usecase")

type PaymentUseCase struct {
	gateway       service.PaymentGateway
	logger        logger.Logger
	publicBaseURL string
	now           func() time.Time
}

func NewPaymentUseCase(gateway service.PaymentGateway, log logger.Logger, publicBaseURL string) *PaymentUseCase {
	return &PaymentUseCase{
		gateway:       gateway,
		logger:        log,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type CreatePaymentIntentInput struct {
	Amount   int64
	Currency string
}

func (uc *PaymentUseCase) CreatePaymentIntent(ctx context.Context, input CreatePaymentIntentInput) (*payment.PaymentIntent, error) {
	ctx, span := tracer.Start(ctx, "CreatePaymentIntent")
	defer span.End()

	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	currency := normalizeCurrency(input.Currency)
	span.SetAttributes(attribute.Int64("amount", input.Amount), attribute.String("currency", currency))

	intent, err := uc.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		Amount:           input.Amount,
		Currency:         currency,
		AutomaticMethods: true,
		Metadata: map[string]string{
			"source":    sourceApp,
			"timestamp": uc.now().Format(time.RFC3339),
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, uc.gatewayError("Failed to create payment intent", err)
	}

	uc.logger.Info("Payment intent created", zap.String("payment_intent_id", intent.ID))
	return intent, nil
}

type SendMoneyInput struct {
	Amount         int64
	Currency       string
	RecipientEmail string
	Note           string
}

func (uc *PaymentUseCase) CreateSendMoneyIntent(ctx context.Context, input SendMoneyInput) (*payment.PaymentIntent, error) {
	ctx, span := tracer.Start(ctx, "CreateSendMoneyIntent")
	defer span.End()

	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	recipient := strings.TrimSpace(input.RecipientEmail)
	if !validEmail(recipient) {
		return nil, apperror.NewInvalidInput("Valid recipient email is required", nil)
	}

	description := "Send money to " + recipient
	if input.Note != "" {
		description += " - " + input.Note
	}

	intent, err := uc.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		Amount:             input.Amount,
		Currency:           normalizeCurrency(input.Currency),
		Description:        description,
		PaymentMethodTypes: []string{paymentMethodTypeCard},
		Metadata: map[string]string{
			"source":          sourceSendMoney,
			"recipient_email": recipient,
			"note":            input.Note,
			"timestamp":       uc.now().Format(time.RFC3339),
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, uc.gatewayError("Failed to create send money payment intent", err)
	}

	uc.logger.Info("Send money intent created", zap.String("payment_intent_id", intent.ID))
	return intent, nil
}

type ApplePayInput struct {
	PaymentMethodID string
	Amount          int64
	Currency        string
}

// ConfirmApplePay creates and confirms an intent in one call.
func (uc *PaymentUseCase) ConfirmApplePay(ctx context.Context, input ApplePayInput) (*payment.PaymentIntent, error) {
	ctx, span := tracer.Start(ctx, "ConfirmApplePay")
	defer span.End()

	if strings.TrimSpace(input.PaymentMethodID) == "" {
		return nil, apperror.NewInvalidInput("Payment method is required", nil)
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}

	intent, err := uc.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		Amount:          input.Amount,
		Currency:        normalizeCurrency(input.Currency),
		PaymentMethodID: input.PaymentMethodID,
		Confirm:         true,
		ReturnURL:       uc.publicBaseURL + "/success",
	})
	if err != nil {
		span.RecordError(err)
		return nil, uc.gatewayError("Payment failed", err)
	}
	return intent, nil
}

type PaymentMethodInput struct {
	Type      string
	CardToken string
}

func (uc *PaymentUseCase) CreatePaymentMethod(ctx context.Context, input PaymentMethodInput) (string, error) {
	ctx, span := tracer.Start(ctx, "CreatePaymentMethod")
	defer span.End()

	methodType := strings.TrimSpace(input.Type)
	if methodType == "" {
		methodType = paymentMethodTypeCard
	}
	if strings.TrimSpace(input.CardToken) == "" {
		return "", apperror.NewInvalidInput("Card token is required", nil)
	}

	id, err := uc.gateway.CreatePaymentMethod(ctx, methodType, input.CardToken)
	if err != nil {
		span.RecordError(err)
		return "", uc.gatewayError("Failed to create payment method", err)
	}
	return id, nil
}

type InvoiceInput struct {
	Amount        int64
	Currency      string
	CustomerEmail string
	CustomerName  string
	Description   string
	// DueDate is an optional YYYY-MM-DD date; without it the invoice is due in 30 days.
	DueDate string
}

// CreateInvoice finds or creates the customer by email, then issues and emails the invoice.
func (uc *PaymentUseCase) CreateInvoice(ctx context.Context, input InvoiceInput) (*payment.Invoice, error) {
	ctx, span := tracer.Start(ctx, "CreateInvoice")
	defer span.End()

	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(input.CustomerEmail)
	if !validEmail(email) {
		return nil, apperror.NewInvalidInput("Valid customer email is required", nil)
	}
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		return nil, apperror.NewInvalidInput("Valid customer name is required", nil)
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperror.NewInvalidInput("Valid description is required", nil)
	}
	days, err := uc.daysUntilDue(input.DueDate)
	if err != nil {
		return nil, err
	}

	customer, err := uc.gateway.FindCustomerByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		return nil, uc.gatewayError("Failed to create customer", err)
	}
	if customer == nil {
		customer, err = uc.gateway.CreateCustomer(ctx, email, name, map[string]string{
			"source":     sourceInvoice,
			"created_at": uc.now().Format(time.RFC3339),
		})
		if err != nil {
			span.RecordError(err)
			return nil, uc.gatewayError("Failed to create customer", err)
		}
		uc.logger.Info("Created customer", zap.String("customer_id", customer.ID))
	}

	invoice, err := uc.gateway.CreateAndSendInvoice(ctx, payment.InvoiceRequest{
		CustomerID:   customer.ID,
		Amount:       input.Amount,
		Currency:     normalizeCurrency(input.Currency),
		Description:  description,
		DaysUntilDue: days,
		Metadata: map[string]string{
			"source":     sourceInvoice,
			"created_at": uc.now().Format(time.RFC3339),
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, uc.gatewayError("Failed to create invoice", err)
	}

	uc.logger.Info("Invoice created and sent", zap.String("invoice_id", invoice.ID), zap.String("customer_id", customer.ID))
	return invoice, nil
}

func (uc *PaymentUseCase) daysUntilDue(dueDate string) (int64, error) {
	dueDate = strings.TrimSpace(dueDate)
	if dueDate == "" {
		return defaultDaysUntilDue, nil
	}
	due, err := time.Parse(dueDateLayout, dueDate)
	if err != nil {
		return 0, apperror.NewInvalidInput("due_date must be YYYY-MM-DD", err)
	}
	today := uc.now().Truncate(24 * time.Hour)
	days := int64(due.Sub(today).Hours() / 24)
	if days < 1 {
		return 0, apperror.NewInvalidInput("due_date must be in the future", nil)
	}
	return days, nil
}

func (uc *PaymentUseCase) CreateTerminalConnectionToken(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "CreateTerminalConnectionToken")
	defer span.End()

	secret, err := uc.gateway.CreateTerminalConnectionToken(ctx)
	if err != nil {
		span.RecordError(err)
		return "", uc.gatewayError("Failed to create connection token", err)
	}
	return secret, nil
}

type LocationInput struct {
	BusinessName string
	Address      payment.Address
}

func (uc *PaymentUseCase) CreateTerminalLocation(ctx context.Context, input LocationInput) (string, error) {
	ctx, span := tracer.Start(ctx, "CreateTerminalLocation")
	defer span.End()

	addr := input.Address
	if addr.Line1 == "" || addr.City == "" || addr.State == "" || addr.PostalCode == "" {
		return "", apperror.NewInvalidInput("Address line1, city, state and postalCode are required", nil)
	}
	// Tap to Pay is US only.
	addr.Country = payment.TerminalCountry

	name := strings.TrimSpace(input.BusinessName)
	if name == "" {
		name = defaultLocationName
	}

	id, err := uc.gateway.CreateTerminalLocation(ctx, payment.LocationRequest{DisplayName: name, Address: addr})
	if err != nil {
		span.RecordError(err)
		return "", uc.gatewayError("Failed to create location", err)
	}
	return id, nil
}

// gatewayError keeps provider rejections as they are and hides everything else.
func (uc *PaymentUseCase) gatewayError(msg string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		uc.logger.Warn(msg, zap.Error(err))
		return appErr
	}
	uc.logger.Error(msg, err)
	return apperror.NewInternal(strings.ToLower(msg), err)
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return apperror.NewInvalidInput("Valid amount is required", fmt.Errorf("amount %d", amount))
	}
	return nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

func normalizeCurrency(currency string) string {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return payment.DefaultCurrency
	}
	return currency
}
