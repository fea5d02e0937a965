package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}

// PaymentConfirmation is the payload of the payment-confirmed activation
// callback. The sender has already verified the payment; this service only
// records the granted period.
type PaymentConfirmation struct {
	PrincipalID int64 `json:"principal_id"`
	Days        int   `json:"days"`
}
