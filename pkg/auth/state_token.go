package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateIssuer = "tap-api"

var ErrInvalidState = errors.New("invalid or expired state token")

// StateService signs the OAuth state parameter so a callback can be tied back to
// the username that started the flow.
type StateService struct {
	secretKey []byte
	lifespan  time.Duration
	now       func() time.Time
}

type StateClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewStateService(secretKey string, lifespan time.Duration) *StateService {
	return &StateService{
		secretKey: []byte(secretKey),
		lifespan:  lifespan,
		now:       time.Now,
	}
}

func (s *StateService) Issue(username string) (string, error) {
	now := s.now()
	claims := StateClaims{
		username,
		jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifespan)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   username,
			Issuer:    stateIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("cannot sign state: %w", err)
	}
	return signedString, nil
}

// Verify returns the username the state was issued for.
func (s *StateService) Verify(state string) (string, error) {
	token, err := jwt.ParseWithClaims(state, &StateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signature algorithm: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	},
		jwt.WithIssuer(stateIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid || claims.Username == "" {
		return "", ErrInvalidState
	}
	return claims.Username, nil
}
