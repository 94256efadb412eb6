package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"

	"github.com/tapcards/tap/internal/application/service"
	"github.com/tapcards/tap/internal/config"
	"github.com/tapcards/tap/internal/domain/payment"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

type stripeAdapter struct {
	sc              *client.API
	connectClientID string
	logger          logger.Logger
}

func NewStripeAdapter(cfg config.Config, log logger.Logger) (service.PaymentGateway, error) {
	if cfg.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret_key has not config")
	}
	sc := client.New(cfg.Stripe.SecretKey, nil)
	log.Info("Stripe client initialized.")
	return newStripeAdapter(sc, cfg.Stripe.ConnectClientID, log), nil
}

func newStripeAdapter(sc *client.API, connectClientID string, log logger.Logger) *stripeAdapter {
	return &stripeAdapter{sc: sc, connectClientID: connectClientID, logger: log}
}

func (a *stripeAdapter) CreatePaymentIntent(ctx context.Context, req payment.IntentRequest) (*payment.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
	}
	params.Context = ctx
	if req.AutomaticMethods {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}
	if len(req.PaymentMethodTypes) > 0 {
		params.PaymentMethodTypes = stripe.StringSlice(req.PaymentMethodTypes)
	}
	if req.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethodID)
	}
	if req.Confirm {
		params.Confirm = stripe.Bool(true)
	}
	if req.ReturnURL != "" {
		params.ReturnURL = stripe.String(req.ReturnURL)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := a.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, a.mapError("create payment intent", err)
	}
	return &payment.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}

func (a *stripeAdapter) CreatePaymentMethod(ctx context.Context, methodType, cardToken string) (string, error) {
	params := &stripe.PaymentMethodParams{
		Type: stripe.String(methodType),
		Card: &stripe.PaymentMethodCardParams{
			Token: stripe.String(cardToken),
		},
	}
	params.Context = ctx

	pm, err := a.sc.PaymentMethods.New(params)
	if err != nil {
		return "", a.mapError("create payment method", err)
	}
	return pm.ID, nil
}

// FindCustomerByEmail returns nil without error when no customer has that email.
func (a *stripeAdapter) FindCustomerByEmail(ctx context.Context, email string) (*payment.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := a.sc.Customers.List(params)
	if iter.Next() {
		c := iter.Customer()
		return &payment.Customer{ID: c.ID, Email: c.Email, Name: c.Name}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, a.mapError("list customers", err)
	}
	return nil, nil
}

func (a *stripeAdapter) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*payment.Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	c, err := a.sc.Customers.New(params)
	if err != nil {
		return nil, a.mapError("create customer", err)
	}
	return &payment.Customer{ID: c.ID, Email: c.Email, Name: c.Name}, nil
}

func (a *stripeAdapter) CreateAndSendInvoice(ctx context.Context, req payment.InvoiceRequest) (*payment.Invoice, error) {
	invParams := &stripe.InvoiceParams{
		Customer:         stripe.String(req.CustomerID),
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:     stripe.Int64(req.DaysUntilDue),
		Description:      stripe.String(req.Description),
	}
	invParams.Context = ctx
	for k, v := range req.Metadata {
		invParams.AddMetadata(k, v)
	}

	inv, err := a.sc.Invoices.New(invParams)
	if err != nil {
		return nil, a.mapError("create invoice", err)
	}

	itemParams := &stripe.InvoiceItemParams{
		Customer:    stripe.String(req.CustomerID),
		Invoice:     stripe.String(inv.ID),
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
	}
	itemParams.Context = ctx
	if _, err := a.sc.InvoiceItems.New(itemParams); err != nil {
		return nil, a.mapError("create invoice item", err)
	}

	finalizeParams := &stripe.InvoiceFinalizeInvoiceParams{}
	finalizeParams.Context = ctx
	if _, err := a.sc.Invoices.FinalizeInvoice(inv.ID, finalizeParams); err != nil {
		return nil, a.mapError("finalize invoice", err)
	}

	sendParams := &stripe.InvoiceSendInvoiceParams{}
	sendParams.Context = ctx
	sent, err := a.sc.Invoices.SendInvoice(inv.ID, sendParams)
	if err != nil {
		return nil, a.mapError("send invoice", err)
	}

	return &payment.Invoice{
		ID:               sent.ID,
		CustomerID:       req.CustomerID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		Status:           string(sent.Status),
		HostedInvoiceURL: sent.HostedInvoiceURL,
	}, nil
}

func (a *stripeAdapter) CreateTerminalConnectionToken(ctx context.Context) (string, error) {
	params := &stripe.TerminalConnectionTokenParams{}
	params.Context = ctx

	token, err := a.sc.TerminalConnectionTokens.New(params)
	if err != nil {
		return "", a.mapError("create terminal connection token", err)
	}
	return token.Secret, nil
}

func (a *stripeAdapter) CreateTerminalLocation(ctx context.Context, req payment.LocationRequest) (string, error) {
	params := &stripe.TerminalLocationParams{
		DisplayName: stripe.String(req.DisplayName),
		Address: &stripe.AddressParams{
			Line1:      stripe.String(req.Address.Line1),
			Line2:      stripe.String(req.Address.Line2),
			City:       stripe.String(req.Address.City),
			State:      stripe.String(req.Address.State),
			Country:    stripe.String(req.Address.Country),
			PostalCode: stripe.String(req.Address.PostalCode),
		},
	}
	params.Context = ctx

	loc, err := a.sc.TerminalLocations.New(params)
	if err != nil {
		return "", a.mapError("create terminal location", err)
	}
	return loc.ID, nil
}

func (a *stripeAdapter) ConnectAuthorizeURL(state string) string {
	return a.sc.OAuth.AuthorizeURL(&stripe.AuthorizeURLParams{
		ClientID:     stripe.String(a.connectClientID),
		ResponseType: stripe.String("code"),
		Scope:        stripe.String(string(stripe.OAuthScopeTypeReadWrite)),
		State:        stripe.String(state),
	})
}

func (a *stripeAdapter) ExchangeConnectCode(ctx context.Context, code string) (*payment.ConnectedAccount, error) {
	params := &stripe.OAuthTokenParams{
		GrantType: stripe.String("authorization_code"),
		Code:      stripe.String(code),
	}
	params.Context = ctx

	token, err := a.sc.OAuth.New(params)
	if err != nil {
		return nil, a.mapError("exchange oauth code", err)
	}
	return &payment.ConnectedAccount{
		AccountID: token.StripeUserID,
		Scope:     string(token.Scope),
		Livemode:  token.Livemode,
	}, nil
}

// mapError turns request-level rejections into payment errors carrying the
// provider message. Everything else is an internal failure.
func (a *stripeAdapter) mapError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		a.logger.Warn("Stripe request failed",
			zap.String("op", op),
			zap.String("type", string(stripeErr.Type)),
			zap.String("code", string(stripeErr.Code)),
			zap.Int("status", stripeErr.HTTPStatusCode),
		)
		switch stripeErr.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeIdempotency:
			return apperror.NewPayment(stripeErr.Msg, err)
		}
	}
	return apperror.NewInternal("stripe "+op+" failed", err)
}
