package dto

import "github.com/noah-isme/checkin-sync-agent/internal/models"

// PendingResponse lists queued check-ins.
type PendingResponse struct {
	Count   int                    `json:"count"`
	Pending []models.CheckinRecord `json:"pending"`
}

// ConnectivityRequest is the body of PUT /connectivity.
type ConnectivityRequest struct {
	IsConnected *bool `json:"isConnected" validate:"required"`
}
