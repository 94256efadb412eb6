package payment

import (
	"context"

	"github.com/tapcards/tap/internal/application/service"
	"github.com/tapcards/tap/internal/domain/payment"
	"github.com/tapcards/tap/pkg/apperror"
)

// unavailableGateway stands in when Stripe is not configured, so the profile API
// can run without payment credentials.
type unavailableGateway struct {
	reason string
}

func NewUnavailableGateway(reason string) service.PaymentGateway {
	return unavailableGateway{reason: reason}
}

func (g unavailableGateway) err() error {
	return apperror.NewUnavailable("Payments are not configured: " + g.reason)
}

func (g unavailableGateway) CreatePaymentIntent(context.Context, payment.IntentRequest) (*payment.PaymentIntent, error) {
	return nil, g.err()
}

func (g unavailableGateway) CreatePaymentMethod(context.Context, string, string) (string, error) {
	return "", g.err()
}

func (g unavailableGateway) FindCustomerByEmail(context.Context, string) (*payment.Customer, error) {
	return nil, g.err()
}

func (g unavailableGateway) CreateCustomer(context.Context, string, string, map[string]string) (*payment.Customer, error) {
	return nil, g.err()
}

func (g unavailableGateway) CreateAndSendInvoice(context.Context, payment.InvoiceRequest) (*payment.Invoice, error) {
	return nil, g.err()
}

func (g unavailableGateway) CreateTerminalConnectionToken(context.Context) (string, error) {
	return "", g.err()
}

func (g unavailableGateway) CreateTerminalLocation(context.Context, payment.LocationRequest) (string, error) {
	return "", g.err()
}

// ConnectAuthorizeURL returns "" which the connect flow reports as unavailable.
func (g unavailableGateway) ConnectAuthorizeURL(string) string { return "" }

func (g unavailableGateway) ExchangeConnectCode(context.Context, string) (*payment.ConnectedAccount, error) {
	return nil, g.err()
}
