// Package aggregate derives the per-account view from resolved campaign and
// donation records.
package aggregate

import (
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Aggregate deduplicates campaigns and donations by ID (first occurrence
// wins) and partitions them for account. A nil account yields an empty view.
func Aggregate(campaigns []model.Campaign, donations []model.Donation, account *model.Account) model.ViewState {
	view := model.EmptyView(account)
	if account == nil {
		return view
	}

	seen := make(map[string]struct{}, len(campaigns))
	for _, c := range campaigns {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		view.Campaigns = append(view.Campaigns, c)
		if c.Creator == account.Address {
			view.UserCampaigns = append(view.UserCampaigns, c)
		}
	}

	seenDonations := make(map[string]struct{}, len(donations))
	total := decimal.Zero
	for _, d := range donations {
		if _, dup := seenDonations[d.ID]; dup {
			continue
		}
		seenDonations[d.ID] = struct{}{}
		if d.Donor != account.Address {
			continue
		}
		view.UserDonations = append(view.UserDonations, d)
		total = total.Add(d.Amount)
	}
	view.WalletTotalContributed = total
	return view
}

// ShareOfTotal returns donation.Amount as a percentage of the campaign's
// total. ok is false when the total is not positive.
func ShareOfTotal(donation model.Donation, campaign model.Campaign) (pct decimal.Decimal, ok bool) {
	if !campaign.TotalDonated.IsPositive() {
		return decimal.Zero, false
	}
	return donation.Amount.Mul(hundred).Div(campaign.TotalDonated), true
}
