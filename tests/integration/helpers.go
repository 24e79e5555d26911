package integration

import (
	"time"

	"pigeon/internal/campaign"
	"pigeon/internal/logger"
	"pigeon/pkg/models"
)

const (
	containerStartupTimeout = 60
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestRecipient(email, name string) models.Recipient {
	return models.Recipient{
		Email:        email,
		Name:         name,
		Subscribed:   true,
		SubscribedAt: time.Now().Add(-30 * 24 * time.Hour),
	}
}

func createTestCampaign(name string) *campaign.Campaign {
	return &campaign.Campaign{
		Name:    name,
		Status:  campaign.StatusDraft,
		Type:    campaign.TypeOneTime,
		Subject: "Monthly update",
		Content: "Hello {{name}}, here is what's new.",
		Owner:   "tester@example.com",
		Recipients: []models.Recipient{
			createTestRecipient("alice@example.com", "Alice"),
			createTestRecipient("bob@example.com", "Bob"),
		},
	}
}
