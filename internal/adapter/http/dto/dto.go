package dto

// CreateTokenRequest is the request body for connection-token issuance.
type CreateTokenRequest struct {
	UserID    string `json:"userId" binding:"required,safe_id,max=128"`
	UserEmail string `json:"userEmail" binding:"required,email,max=254"`
}

// CreateTokenResponse is the response body for a freshly issued token.
type CreateTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

// ConnectionStatusResponse reports whether an account has a bound chat.
type ConnectionStatusResponse struct {
	Connected bool            `json:"connected"`
	Binding   *BindingSummary `json:"binding,omitempty"`
}

// BindingSummary is the chat identity exposed to the profile page.
type BindingSummary struct {
	ChatID      string `json:"chat_id"`
	Username    string `json:"username,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	ConnectedAt string `json:"connected_at"`
}

// PaystackWebhook is the asynchronous gateway notification body. Only the
// fields this service consumes are declared; the rest of the payload is
// ignored.
type PaystackWebhook struct {
	Event string              `json:"event"`
	Data  PaystackWebhookData `json:"data"`
}

// PaystackWebhookData carries the charge details of a gateway event.
type PaystackWebhookData struct {
	Amount    int64            `json:"amount"` // minor units
	Reference string           `json:"reference"`
	PaidAt    string           `json:"paid_at"`
	Metadata  PaystackMetadata `json:"metadata"`
}

// PaystackMetadata is the correlation metadata echoed back from link
// creation.
type PaystackMetadata struct {
	TelegramID string `json:"telegramID"`
	AccountID  string `json:"accountID"`
	Purpose    string `json:"purpose"`
}
