package types

// VerifyRequest carries a signed ownership proof for a payment address.
// The message/signature pair is checked by the payment backend, not here.
type VerifyRequest struct {
	Message   string `json:"message" validate:"required"`
	Signature string `json:"signature" validate:"required"`
	Address   string `json:"address" validate:"required,payaddr"`
}

// AdminLoginRequest asks for a token on behalf of an arbitrary address.
// Only reachable through the admin key gate.
type AdminLoginRequest struct {
	Address string `json:"address" validate:"required,payaddr"`
}

// TokenResponse is returned on successful credential issuance
type TokenResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}
