package payment

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/tapcards/tap/internal/application/service"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/auth"
	"github.com/tapcards/tap/pkg/logger"
)

// AccountLinker stores a connected payout account on a profile.
type AccountLinker interface {
	ProfileExists(ctx context.Context, username string) (bool, error)
	LinkPaymentAccount(ctx context.Context, username, accountID string) error
}

type ConnectUseCase struct {
	gateway service.PaymentGateway
	states  *auth.StateService
	linker  AccountLinker
	logger  logger.Logger
	enabled bool
}

func NewConnectUseCase(gateway service.PaymentGateway, states *auth.StateService, linker AccountLinker, log logger.Logger, enabled bool) *ConnectUseCase {
	return &ConnectUseCase{
		gateway: gateway,
		states:  states,
		linker:  linker,
		logger:  log,
		enabled: enabled,
	}
}

func (uc *ConnectUseCase) disabled() error {
	return apperror.NewUnavailable("Stripe OAuth callback is temporarily disabled")
}

// AuthorizeURL starts the Connect onboarding flow for username. Callers are not
// authenticated, so anyone who knows a username can start the flow for it; keep
// stripe.oauth_enabled off until requests carry an identity.
func (uc *ConnectUseCase) AuthorizeURL(ctx context.Context, username string) (string, error) {
	ctx, span := tracer.Start(ctx, "ConnectAuthorizeURL")
	defer span.End()

	if !uc.enabled {
		return "", uc.disabled()
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return "", apperror.NewInvalidInput("Username is required", nil)
	}

	exists, err := uc.linker.ProfileExists(ctx, username)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if !exists {
		return "", apperror.NewNotFound("Profile", username)
	}

	state, err := uc.states.Issue(username)
	if err != nil {
		return "", apperror.NewInternal("failed to issue oauth state", err)
	}
	authorizeURL := uc.gateway.ConnectAuthorizeURL(state)
	if authorizeURL == "" {
		return "", apperror.NewUnavailable("Stripe Connect is not configured")
	}
	return authorizeURL, nil
}

type CallbackInput struct {
	Code  string
	State string
	// ProviderError is set when the user declined on the provider side.
	ProviderError string
}

type CallbackOutput struct {
	Username  string
	AccountID string
}

func (uc *ConnectUseCase) Callback(ctx context.Context, input CallbackInput) (*CallbackOutput, error) {
	ctx, span := tracer.Start(ctx, "ConnectCallback")
	defer span.End()

	if !uc.enabled {
		return nil, uc.disabled()
	}
	if input.ProviderError != "" {
		return nil, apperror.NewInvalidInput("Stripe authorization was denied: "+input.ProviderError, nil)
	}
	if input.Code == "" || input.State == "" {
		return nil, apperror.NewInvalidInput("code and state are required", nil)
	}

	username, err := uc.states.Verify(input.State)
	if err != nil {
		span.RecordError(err)
		return nil, apperror.NewUnauthorized("invalid oauth state", err)
	}

	account, err := uc.gateway.ExchangeConnectCode(ctx, input.Code)
	if err != nil {
		span.RecordError(err)
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal("failed to exchange oauth code", err)
	}

	if err := uc.linker.LinkPaymentAccount(ctx, username, account.AccountID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	uc.logger.Info("Stripe account connected", zap.String("username", username), zap.String("account_id", account.AccountID))
	return &CallbackOutput{Username: username, AccountID: account.AccountID}, nil
}
