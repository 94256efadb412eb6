package payment

const (
	DefaultCurrency = "usd"
	TerminalCountry = "US"
)

type PaymentIntent struct {
	ID           string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// IntentRequest is what the gateway needs to open a payment intent.
type IntentRequest struct {
	Amount             int64
	Currency           string
	Description        string
	PaymentMethodID    string
	PaymentMethodTypes []string
	AutomaticMethods   bool
	Confirm            bool
	ReturnURL          string
	Metadata           map[string]string
}

type Customer struct {
	ID    string
	Email string
	Name  string
}

type InvoiceRequest struct {
	CustomerID   string
	Amount       int64
	Currency     string
	Description  string
	DaysUntilDue int64
	Metadata     map[string]string
}

type Invoice struct {
	ID               string `json:"invoice_id"`
	CustomerID       string `json:"customer_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"-"`
}

type LocationRequest struct {
	DisplayName string
	Address     Address
}

// ConnectedAccount is the result of a Connect OAuth code exchange.
type ConnectedAccount struct {
	AccountID string
	Scope     string
	Livemode  bool
}
