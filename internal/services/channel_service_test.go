package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/apisentinel/apisentinel/internal/domain/channel"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/testutil"
)

func TestChannelService_Create(t *testing.T) {
	mockRepo := testutil.NewMockChannelRepository()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	service := NewChannelService(mockRepo, log)

	tests := []struct {
		name    string
		kind    string
		config  string
		wantErr bool
	}{
		{
			name:   "valid email channel",
			kind:   channel.KindEmail,
			config: `{"email":"ops@example.com"}`,
		},
		{
			name:   "valid slack channel",
			kind:   channel.KindSlack,
			config: `{"webhook_url":"https://hooks.slack.com/services/T/B/x"}`,
		},
		{
			name:   "valid webhook channel",
			kind:   channel.KindWebhook,
			config: `{"url":"https://example.com/hook"}`,
		},
		{
			name:    "unsupported kind",
			kind:    "pager",
			config:  `{}`,
			wantErr: true,
		},
		{
			name:    "email channel without address",
			kind:    channel.KindEmail,
			config:  `{}`,
			wantErr: true,
		},
		{
			name:    "slack channel without webhook url",
			kind:    channel.KindSlack,
			config:  `{"webhook_url":""}`,
			wantErr: true,
		},
		{
			name:    "webhook channel with malformed config",
			kind:    channel.KindWebhook,
			config:  `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := service.Create(context.Background(), "p1", tt.kind, json.RawMessage(tt.config))

			if (err != nil) != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if c.ID == "" {
					t.Error("Create() did not set channel ID")
				}
				if !c.Active {
					t.Error("Create() channel not active by default")
				}
			}
		})
	}
}

func TestChannelService_Update(t *testing.T) {
	mockRepo := testutil.NewMockChannelRepository()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	service := NewChannelService(mockRepo, log)

	ctx := context.Background()
	c, err := service.Create(ctx, "p1", channel.KindWebhook, json.RawMessage(`{"url":"https://example.com/hook"}`))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Deactivate without touching the config
	inactive := false
	updated, err := service.Update(ctx, c.ID, nil, &inactive)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Active {
		t.Error("Update() left channel active")
	}

	// New config is validated against the channel's kind
	if _, err := service.Update(ctx, c.ID, json.RawMessage(`{}`), nil); err == nil {
		t.Error("Update() accepted webhook config without url")
	}
}
