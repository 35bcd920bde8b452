package models

import "time"

// ConnectivityState is owned by the state store and written only by the network monitor
// or an explicit connectivity push.
type ConnectivityState struct {
	IsConnected   bool      `json:"isConnected"`
	LastChangedAt time.Time `json:"lastChangedAt"`
}
