package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/tapcards/tap/adapters/event"
	"github.com/tapcards/tap/adapters/media_storage"
	paymentAdapter "github.com/tapcards/tap/adapters/payment"
	"github.com/tapcards/tap/adapters/persistence"
	"github.com/tapcards/tap/internal/application/service"
	mediaUC "github.com/tapcards/tap/internal/application/usecase/media"
	paymentUC "github.com/tapcards/tap/internal/application/usecase/payment"
	profileUC "github.com/tapcards/tap/internal/application/usecase/profile"
	"github.com/tapcards/tap/internal/domain/payment"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/auth"
	"github.com/tapcards/tap/pkg/logger"
)

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, file io.Reader, folder, publicID string) (*service.UploadResult, error) {
	if _, err := io.Copy(io.Discard, file); err != nil {
		return nil, err
	}
	return &service.UploadResult{
		URL:      fmt.Sprintf("https://res.cloudinary.com/demo/image/upload/%s/%s", folder, publicID),
		PublicID: folder + "/" + publicID,
	}, nil
}

func (u stubUploader) UploadRaw(ctx context.Context, file io.Reader, folder, publicID string) (*service.UploadResult, error) {
	return u.Upload(ctx, file, folder, publicID)
}

func (stubUploader) Delete(context.Context, string) error { return nil }

func (stubUploader) TransformURL(publicID, transformation string) (string, error) {
	return "https://res.cloudinary.com/demo/image/upload/" + transformation + "/" + publicID, nil
}

type stubGateway struct{}

func (stubGateway) CreatePaymentIntent(_ context.Context, req payment.IntentRequest) (*payment.PaymentIntent, error) {
	if req.Amount == 402 {
		return nil, apperror.NewPayment("Your card was declined.", nil)
	}
	return &payment.PaymentIntent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret",
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       "requires_payment_method",
	}, nil
}

func (stubGateway) CreatePaymentMethod(context.Context, string, string) (string, error) {
	return "pm_123", nil
}

func (stubGateway) FindCustomerByEmail(context.Context, string) (*payment.Customer, error) {
	return nil, nil
}

func (stubGateway) CreateCustomer(_ context.Context, email, name string, _ map[string]string) (*payment.Customer, error) {
	return &payment.Customer{ID: "cus_123", Email: email, Name: name}, nil
}

func (stubGateway) CreateAndSendInvoice(_ context.Context, req payment.InvoiceRequest) (*payment.Invoice, error) {
	return &payment.Invoice{
		ID:               "in_123",
		CustomerID:       req.CustomerID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		Status:           "open",
		HostedInvoiceURL: "https://invoice.stripe.com/i/in_123",
	}, nil
}

func (stubGateway) CreateTerminalConnectionToken(context.Context) (string, error) {
	return "pst_test_123", nil
}

func (stubGateway) CreateTerminalLocation(context.Context, payment.LocationRequest) (string, error) {
	return "tml_123", nil
}

func (stubGateway) ConnectAuthorizeURL(state string) string {
	return "https://connect.stripe.com/oauth/authorize?state=" + state
}

func (stubGateway) ExchangeConnectCode(context.Context, string) (*payment.ConnectedAccount, error) {
	return &payment.ConnectedAccount{AccountID: "acct_123"}, nil
}

type APIE2ETestSuite struct {
	suite.Suite
	Router http.Handler
}

func (s *APIE2ETestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	appLogger := logger.NewNopLogger()

	repo := persistence.NewCollectionRepo(persistence.NewMemoryStore(), "profiles", appLogger)
	profileUseCase := profileUC.NewProfileUseCase(repo, event.NopPublisher{}, appLogger, profileUC.Options{
		FailOpen:      true,
		PublicBaseURL: "https://tapcards.us",
	})
	uploadUseCase := mediaUC.NewUploadAvatarUseCase(profileUseCase, stubUploader{}, event.NopPublisher{}, appLogger, "avatars", 5)
	paymentUseCase := paymentUC.NewPaymentUseCase(stubGateway{}, appLogger, "https://tapcards.us")
	states := auth.NewStateService("e2e-secret", time.Minute)
	connectUseCase := paymentUC.NewConnectUseCase(stubGateway{}, states, profileUseCase, appLogger, true)

	router := NewRouter(Handlers{
		Profile: NewProfileHandler(profileUseCase, appLogger),
		Upload:  NewUploadHandler(uploadUseCase, appLogger, 5),
		Payment: NewPaymentHandler(paymentUseCase, appLogger),
		OAuth:   NewOAuthHandler(connectUseCase, appLogger),
		Health:  NewHealthHandler(profileUseCase),
	}, appLogger)
	s.Router = WithCORS(router, []string{"*"})
}

func TestAPIE2E(t *testing.T) {
	suite.Run(t, new(APIE2ETestSuite))
}

func (s *APIE2ETestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (s *APIE2ETestSuite) Test_Health() {
	rr := s.do(http.MethodGet, "/api/health", nil)
	assert.Equal(s.T(), http.StatusOK, rr.Code)

	rr = s.do(http.MethodGet, "/api/ready", nil)
	assert.Equal(s.T(), http.StatusOK, rr.Code)
	assert.NotEmpty(s.T(), rr.Header().Get(HeaderRequestID))
}

func (s *APIE2ETestSuite) Test_Profile_Flow() {
	rr := s.do(http.MethodGet, "/api/profiles/check-username?username=Alice", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	assert.Equal(s.T(), map[string]any{"available": true, "username": "alice"}, decode(s.T(), rr))

	rr = s.do(http.MethodPost, "/api/profiles", gin.H{
		"username":     "Alice",
		"displayName":  "Alice Smith",
		"bio":          "Designer",
		"email":        "alice@example.com",
		"authProvider": "google",
		"links":        []gin.H{{"title": "Site", "url": "https://alice.dev"}},
	})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	created := decode(s.T(), rr)
	assert.Equal(s.T(), true, created["success"])
	assert.Equal(s.T(), "created", created["action"])
	assert.Equal(s.T(), "https://tapcards.us/alice", created["url"])

	rr = s.do(http.MethodPost, "/api/profiles", gin.H{"username": "alice", "displayName": "Alice Smith", "title": "Lead Designer"})
	s.Require().Equal(http.StatusOK, rr.Code)
	updated := decode(s.T(), rr)
	assert.Equal(s.T(), "updated", updated["action"])
	profileBody := updated["profile"].(map[string]any)
	assert.Equal(s.T(), "Alice Smith", profileBody["name"])
	assert.Equal(s.T(), "Lead Designer", profileBody["title"])

	rr = s.do(http.MethodGet, "/api/profiles?username=ALICE", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	assert.Equal(s.T(), "alice", decode(s.T(), rr)["username"])

	rr = s.do(http.MethodGet, "/api/profiles?email=ALICE@example.com&authProvider=google", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	assert.Equal(s.T(), "alice", decode(s.T(), rr)["username"])

	rr = s.do(http.MethodGet, "/api/profiles/check-username?username=alice", nil)
	assert.Equal(s.T(), false, decode(s.T(), rr)["available"])

	rr = s.do(http.MethodPut, "/api/profiles", gin.H{"username": "alice", "isPublic": false})
	s.Require().Equal(http.StatusOK, rr.Code)
	assert.Equal(s.T(), false, decode(s.T(), rr)["profile"].(map[string]any)["isPublic"])

	rr = s.do(http.MethodGet, "/api/public/profiles/alice", nil)
	assert.Equal(s.T(), http.StatusNotFound, rr.Code)
}

func (s *APIE2ETestSuite) Test_Profile_Errors() {
	rr := s.do(http.MethodGet, "/api/profiles", nil)
	assert.Equal(s.T(), http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodGet, "/api/profiles?username=ghost", nil)
	assert.Equal(s.T(), http.StatusNotFound, rr.Code)
	body := decode(s.T(), rr)
	assert.NotEmpty(s.T(), body["error"])
	assert.NotEmpty(s.T(), body["message"])

	rr = s.do(http.MethodPut, "/api/profiles", gin.H{"username": "ghost", "bio": "hi"})
	assert.Equal(s.T(), http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodPost, "/api/profiles", gin.H{"username": "bob", "authProvider": "myspace"})
	assert.Equal(s.T(), http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/profiles", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	assert.Equal(s.T(), http.StatusBadRequest, rr.Code)

	identity := gin.H{"email": "dup@example.com", "authProvider": "apple"}
	first := gin.H{"username": "first", "displayName": "First"}
	second := gin.H{"username": "second", "displayName": "Second"}
	for k, v := range identity {
		first[k] = v
		second[k] = v
	}
	rr = s.do(http.MethodPost, "/api/profiles", first)
	s.Require().Equal(http.StatusOK, rr.Code)
	rr = s.do(http.MethodPost, "/api/profiles", second)
	assert.Equal(s.T(), http.StatusConflict, rr.Code)
}

func (s *APIE2ETestSuite) Test_UploadImage() {
	rr := s.do(http.MethodPost, "/api/profiles", gin.H{"username": "carol", "displayName": "Carol"})
	s.Require().Equal(http.StatusOK, rr.Code)

	upload := func(contentType string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		s.Require().NoError(mw.WriteField("username", "carol"))
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="image"; filename="me.png"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		s.Require().NoError(err)
		_, err = part.Write([]byte("\x89PNG fake bytes"))
		s.Require().NoError(err)
		s.Require().NoError(mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/upload-image", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := httptest.NewRecorder()
		s.Router.ServeHTTP(rr, req)
		return rr
	}

	rr = upload("image/png")
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	body := decode(s.T(), rr)
	assert.Equal(s.T(), "Image uploaded successfully", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(s.T(), true, data["profileUpdated"])
	assert.Equal(s.T(), "carol", data["username"])

	rr = s.do(http.MethodGet, "/api/profiles?username=carol", nil)
	assert.Equal(s.T(), data["url"], decode(s.T(), rr)["image"])

	rr = upload("application/pdf")
	assert.Equal(s.T(), http.StatusBadRequest, rr.Code)
}

type countingReader struct {
	r    io.Reader
	read int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	return n, err
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func (s *APIE2ETestSuite) Test_UploadImage_OversizedBodyIsCutOff() {
	const boundary = "tapboundary"
	const imageSize = 60 * 1024 * 1024

	head := "--" + boundary + "\r\n" +
		`Content-Disposition: form-data; name="username"` + "\r\n\r\ncarol\r\n" +
		"--" + boundary + "\r\n" +
		`Content-Disposition: form-data; name="image"; filename="huge.png"` + "\r\n" +
		"Content-Type: image/png\r\n\r\n"
	tail := "\r\n--" + boundary + "--\r\n"
	body := &countingReader{r: io.MultiReader(
		strings.NewReader(head),
		io.LimitReader(zeroReader{}, imageSize),
		strings.NewReader(tail),
	)}

	req := httptest.NewRequest(http.MethodPost, "/api/upload-image", body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)

	assert.Equal(s.T(), http.StatusBadRequest, rr.Code)
	assert.Contains(s.T(), decode(s.T(), rr)["message"], "too large")
	assert.Less(s.T(), body.read, int64(10*1024*1024))
}

func (s *APIE2ETestSuite) Test_Payments() {
	rr := s.do(http.MethodPost, "/api/create-payment-intent", gin.H{"amount": 1500})
	s.Require().Equal(http.StatusOK, rr.Code)
	body := decode(s.T(), rr)
	assert.Equal(s.T(), "pi_123_secret", body["client_secret"])
	assert.Equal(s.T(), "usd", body["currency"])

	rr = s.do(http.MethodPost, "/api/create-payment-intent", gin.H{"amount": 0})
	assert.Equal(s.T(), http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/api/create-payment-intent", gin.H{"amount": 402})
	assert.Equal(s.T(), http.StatusBadRequest, rr.Code)
	assert.Equal(s.T(), "Your card was declined.", decode(s.T(), rr)["message"])

	rr = s.do(http.MethodPost, "/api/create-send-money-intent", gin.H{"amount": 100, "recipient_email": "nope"})
	assert.Equal(s.T(), http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/api/confirm-apple-pay", gin.H{"paymentMethodId": "pm_1", "amount": 100})
	s.Require().Equal(http.StatusOK, rr.Code)
	assert.Equal(s.T(), map[string]any{"success": true, "client_secret": "pi_123_secret"}, decode(s.T(), rr))

	rr = s.do(http.MethodPost, "/api/create-payment-method", gin.H{"type": "card", "card": gin.H{"token": "tok_visa"}})
	s.Require().Equal(http.StatusOK, rr.Code)
	assert.Equal(s.T(), "pm_123", decode(s.T(), rr)["id"])

	rr = s.do(http.MethodPost, "/api/create-invoice", gin.H{
		"amount":         5000,
		"customer_email": "buyer@example.com",
		"customer_name":  "Buyer",
		"description":    "Consulting",
	})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(s.T(), "cus_123", decode(s.T(), rr)["customer_id"])

	rr = s.do(http.MethodPost, "/api/terminal-connection-token", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	assert.Equal(s.T(), "pst_test_123", decode(s.T(), rr)["secret"])

	rr = s.do(http.MethodPost, "/api/create-location", gin.H{
		"businessName": "Shop",
		"address":      gin.H{"line1": "1 Main St", "city": "Austin", "state": "TX", "postalCode": "78701"},
	})
	s.Require().Equal(http.StatusOK, rr.Code)
	assert.Equal(s.T(), map[string]any{"location_id": "tml_123", "success": true}, decode(s.T(), rr))
}

func (s *APIE2ETestSuite) Test_StripeOAuth() {
	rr := s.do(http.MethodPost, "/api/profiles", gin.H{"username": "dave", "displayName": "Dave"})
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = s.do(http.MethodGet, "/api/stripe-oauth/authorize?username=dave&redirect=false", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	url := decode(s.T(), rr)["url"].(string)
	state := url[strings.Index(url, "state=")+len("state="):]

	rr = s.do(http.MethodGet, "/api/stripe-oauth/authorize?username=dave", nil)
	assert.Equal(s.T(), http.StatusFound, rr.Code)

	rr = s.do(http.MethodGet, "/api/stripe-oauth/authorize?username=nobody", nil)
	assert.Equal(s.T(), http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodGet, "/api/stripe-oauth-callback?code=ac_1&state=bogus", nil)
	assert.Equal(s.T(), http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodGet, "/api/stripe-oauth-callback?code=ac_1&state="+state, nil)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(s.T(), "acct_123", decode(s.T(), rr)["stripe_account_id"])

	rr = s.do(http.MethodGet, "/api/profiles?username=dave", nil)
	assert.Equal(s.T(), "acct_123", decode(s.T(), rr)["stripeAccountId"])
}

func TestAPI_WithoutMediaAndPaymentCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	appLogger := logger.NewNopLogger()

	repo := persistence.NewCollectionRepo(persistence.NewMemoryStore(), "profiles", appLogger)
	profileUseCase := profileUC.NewProfileUseCase(repo, event.NopPublisher{}, appLogger, profileUC.Options{PublicBaseURL: "https://tapcards.us"})
	uploader := media_storage.NewUnavailableUploader("cloudinary cloud_name has not config")
	gateway := paymentAdapter.NewUnavailableGateway("stripe secret_key has not config")

	router := NewRouter(Handlers{
		Profile: NewProfileHandler(profileUseCase, appLogger),
		Upload:  NewUploadHandler(mediaUC.NewUploadAvatarUseCase(profileUseCase, uploader, nil, appLogger, "avatars", 5), appLogger, 5),
		Payment: NewPaymentHandler(paymentUC.NewPaymentUseCase(gateway, appLogger, "https://tapcards.us"), appLogger),
		OAuth:   NewOAuthHandler(paymentUC.NewConnectUseCase(gateway, auth.NewStateService("s", time.Minute), profileUseCase, appLogger, true), appLogger),
		Health:  NewHealthHandler(profileUseCase),
	}, appLogger)

	serve := func(method, path string, body any) *httptest.ResponseRecorder {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := serve(http.MethodPost, "/api/profiles", gin.H{"username": "erin", "displayName": "Erin"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(http.MethodPost, "/api/create-payment-intent", gin.H{"amount": 500})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serve(http.MethodGet, "/api/stripe-oauth/authorize?username=erin", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func (s *APIE2ETestSuite) Test_CORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/profiles", nil)
	req.Header.Set("Origin", "https://app.tapcards.us")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)

	assert.Equal(s.T(), http.StatusNoContent, rr.Code)
	assert.Equal(s.T(), "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
