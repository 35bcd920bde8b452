package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	"github.com/noah-isme/checkin-sync-agent/internal/websocket"
)

// Notifier receives the "sync completed" signal, at most once per pass.
type Notifier interface {
	SyncCompleted(ctx context.Context, result models.SyncResult)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, result models.SyncResult)

// SyncCompleted implements Notifier.
func (f NotifierFunc) SyncCompleted(ctx context.Context, result models.SyncResult) {
	f(ctx, result)
}

// MultiNotifier fans a notification out to several notifiers in order.
type MultiNotifier []Notifier

// SyncCompleted implements Notifier.
func (m MultiNotifier) SyncCompleted(ctx context.Context, result models.SyncResult) {
	for _, n := range m {
		if n != nil {
			n.SyncCompleted(ctx, result)
		}
	}
}

// LogNotifier writes a summary line per completed pass.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// SyncCompleted implements Notifier.
func (n *LogNotifier) SyncCompleted(_ context.Context, result models.SyncResult) {
	n.logger.Info("offline check-ins synced",
		zap.String("trigger", string(result.Trigger)),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
		zap.Int("remaining", result.Remaining),
	)
}

type publisher interface {
	Publish(msgType websocket.MessageType, payload interface{}) error
}

// HubNotifier pushes sync results to WebSocket clients.
type HubNotifier struct {
	hub    publisher
	logger *zap.Logger
}

// NewHubNotifier constructs a HubNotifier.
func NewHubNotifier(hub publisher, logger *zap.Logger) *HubNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HubNotifier{hub: hub, logger: logger}
}

// SyncCompleted implements Notifier.
func (n *HubNotifier) SyncCompleted(_ context.Context, result models.SyncResult) {
	if err := n.hub.Publish(websocket.TypeSyncCompleted, result); err != nil {
		n.logger.Warn("failed to publish sync result", zap.Error(err))
	}
}

// Publish forwards arbitrary pushes (connectivity, session expiry) to the hub.
func (n *HubNotifier) Publish(msgType websocket.MessageType, payload interface{}) {
	if err := n.hub.Publish(msgType, payload); err != nil {
		n.logger.Warn("failed to publish message", zap.String("type", string(msgType)), zap.Error(err))
	}
}
