package domain

import "time"

// AuditLog records one API call.
type AuditLog struct {
	ID         string    `json:"id"`
	MerchantID string    `json:"merchantId"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	IP         string    `json:"ip"`
	Metadata   string    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
