package model

import "github.com/shopspring/decimal"

// Campaign is a fundraising campaign object as seen by the client.
type Campaign struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Creator      string          `json:"creator"`
	TotalDonated decimal.Decimal `json:"total_donated"`
	IsActive     bool            `json:"is_active"`
}
