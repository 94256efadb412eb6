package service

import (
	"context"

	"github.com/tapcards/tap/internal/domain/payment"
)

type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req payment.IntentRequest) (*payment.PaymentIntent, error)
	CreatePaymentMethod(ctx context.Context, methodType, cardToken string) (string, error)
	FindCustomerByEmail(ctx context.Context, email string) (*payment.Customer, error)
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*payment.Customer, error)
	// CreateAndSendInvoice creates the invoice and its line item, finalizes it and emails it.
	CreateAndSendInvoice(ctx context.Context, req payment.InvoiceRequest) (*payment.Invoice, error)
	CreateTerminalConnectionToken(ctx context.Context) (string, error)
	CreateTerminalLocation(ctx context.Context, req payment.LocationRequest) (string, error)
	ConnectAuthorizeURL(state string) string
	ExchangeConnectCode(ctx context.Context, code string) (*payment.ConnectedAccount, error)
}
