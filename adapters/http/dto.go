package http

import (
	"github.com/tapcards/tap/internal/domain/payment"
	"github.com/tapcards/tap/internal/domain/profile"
)

// Profile DTOs
type LinkDTO struct {
	Title string `json:"title"`
	URL   string `json:"url" binding:"required"`
	Icon  string `json:"icon,omitempty"`
}

// ProfileWriteRequest is shared by POST and PUT. Absent fields stay nil so
// the merge can tell "not supplied" from a value.
type ProfileWriteRequest struct {
	Username     string    `json:"username"`
	DisplayName  *string   `json:"displayName"`
	Title        *string   `json:"title"`
	Bio          *string   `json:"bio"`
	AvatarURL    *string   `json:"avatarURL"`
	Phone        *string   `json:"phone"`
	Email        *string   `json:"email"`
	Instagram    *string   `json:"instagram"`
	LinkedIn     *string   `json:"linkedin"`
	AuthProvider *string   `json:"authProvider" binding:"omitempty,oneof=google apple"`
	Links        []LinkDTO `json:"links" binding:"omitempty,dive"`
	Theme        *string   `json:"theme"`
	IsPublic     *bool     `json:"isPublic"`
}

func (req *ProfileWriteRequest) ToPatch() profile.Patch {
	patch := profile.Patch{
		DisplayName:  req.DisplayName,
		Title:        req.Title,
		Bio:          req.Bio,
		AvatarURL:    req.AvatarURL,
		Phone:        req.Phone,
		Email:        req.Email,
		Instagram:    req.Instagram,
		LinkedIn:     req.LinkedIn,
		AuthProvider: req.AuthProvider,
		Theme:        req.Theme,
		IsPublic:     req.IsPublic,
	}
	if req.Links != nil {
		patch.Links = make([]profile.Link, len(req.Links))
		for i, l := range req.Links {
			patch.Links[i] = profile.Link{Title: l.Title, URL: l.URL, Icon: l.Icon}
		}
	}
	return patch
}

type UpsertProfileResponse struct {
	Success bool             `json:"success"`
	Profile *profile.Profile `json:"profile"`
	URL     string           `json:"url"`
	Action  string           `json:"action"`
}

type UpdateProfileResponse struct {
	Success bool             `json:"success"`
	Profile *profile.Profile `json:"profile"`
}

type AvailabilityResponse struct {
	Available bool   `json:"available"`
	Username  string `json:"username"`
}

// Payment DTOs
type PaymentIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type SendMoneyRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	RecipientEmail string `json:"recipient_email"`
	Note           string `json:"note"`
}

type ApplePayRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

type ApplePayResponse struct {
	Success      bool   `json:"success"`
	ClientSecret string `json:"client_secret"`
}

type PaymentMethodRequest struct {
	Type string `json:"type"`
	Card struct {
		Token string `json:"token"`
	} `json:"card"`
}

type InvoiceRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	Description   string `json:"description"`
	DueDate       string `json:"due_date"`
}

type LocationRequest struct {
	BusinessName string          `json:"businessName"`
	Address      payment.Address `json:"address"`
}

type LocationResponse struct {
	LocationID string `json:"location_id"`
	Success    bool   `json:"success"`
}

// Upload DTOs
type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}
