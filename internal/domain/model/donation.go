package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Donation is an immutable record of a single donation to a campaign.
// CampaignID may reference a campaign the client has not loaded.
type Donation struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaign_id"`
	Amount     decimal.Decimal `json:"amount"`
	Donor      string          `json:"donor"`
	Timestamp  time.Time       `json:"timestamp"`
}
