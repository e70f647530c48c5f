package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/apisentinel/apisentinel/internal/domain/channel"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
)

// ChannelService manages notification channel configuration
type ChannelService struct {
	repo   channel.Repository
	logger *logger.Logger
}

// NewChannelService creates a new channel service
func NewChannelService(repo channel.Repository, log *logger.Logger) *ChannelService {
	return &ChannelService{
		repo:   repo,
		logger: log,
	}
}

// Create registers a notification channel for a project
func (s *ChannelService) Create(ctx context.Context, projectID, kind string, config json.RawMessage) (*channel.NotificationChannel, error) {
	if err := validateChannelConfig(kind, config); err != nil {
		return nil, err
	}

	c := &channel.NotificationChannel{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Kind:      kind,
		Config:    config,
		Active:    true,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		s.logger.ErrorWithErr(err, "Failed to create notification channel")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"channel_id": c.ID,
		"project_id": projectID,
		"kind":       kind,
	}).Info("Notification channel created")

	return c, nil
}

// GetByID retrieves a channel by ID
func (s *ChannelService) GetByID(ctx context.Context, id string) (*channel.NotificationChannel, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForProject retrieves all channels configured for a project
func (s *ChannelService) ListForProject(ctx context.Context, projectID string) ([]*channel.NotificationChannel, error) {
	return s.repo.ListForProject(ctx, projectID)
}

// Update replaces a channel's config and active flag
func (s *ChannelService) Update(ctx context.Context, id string, config json.RawMessage, active *bool) (*channel.NotificationChannel, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if config != nil {
		if err := validateChannelConfig(c.Kind, config); err != nil {
			return nil, err
		}
		c.Config = config
	}
	if active != nil {
		c.Active = *active
	}

	if err := s.repo.Update(ctx, c); err != nil {
		s.logger.ErrorWithErr(err, "Failed to update notification channel")
		return nil, err
	}

	return c, nil
}

// Delete removes a channel
func (s *ChannelService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"channel_id": id,
	}).Info("Notification channel deleted")

	return nil
}

func validateChannelConfig(kind string, config json.RawMessage) error {
	if !channel.IsValidKind(kind) {
		return errors.BadRequest(fmt.Sprintf("unsupported channel kind: %s", kind))
	}

	switch kind {
	case channel.KindEmail:
		var cfg channel.EmailConfig
		if err := json.Unmarshal(config, &cfg); err != nil || cfg.Email == "" {
			return errors.ConfigurationInvalid("email channel config requires an email address")
		}
	case channel.KindSlack:
		var cfg channel.SlackConfig
		if err := json.Unmarshal(config, &cfg); err != nil || cfg.WebhookURL == "" {
			return errors.ConfigurationInvalid("slack channel config requires a webhook_url")
		}
	case channel.KindWebhook:
		var cfg channel.WebhookConfig
		if err := json.Unmarshal(config, &cfg); err != nil || cfg.URL == "" {
			return errors.ConfigurationInvalid("webhook channel config requires a url")
		}
	}

	return nil
}
