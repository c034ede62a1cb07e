package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tab is the presentation tab selected by the user.
type Tab string

const (
	TabBrowse      Tab = "browse"
	TabCreate      Tab = "create"
	TabMyCampaigns Tab = "my-campaigns"
	TabMyDonations Tab = "my-donations"
)

func (t Tab) Valid() bool {
	switch t {
	case TabBrowse, TabCreate, TabMyCampaigns, TabMyDonations:
		return true
	}
	return false
}

// RecordFailure describes an indexed object that could not be resolved or
// mapped during a refresh cycle.
type RecordFailure struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
	Error   string `json:"error"`
}

// ViewState is the derived projection of the ledger for one account. It is
// rebuilt from scratch on every refresh.
type ViewState struct {
	Account                *Account        `json:"account,omitempty"`
	Campaigns              []Campaign      `json:"campaigns"`
	UserCampaigns          []Campaign      `json:"user_campaigns"`
	UserDonations          []Donation      `json:"user_donations"`
	WalletTotalContributed decimal.Decimal `json:"wallet_total_contributed"`
	Failures               []RecordFailure `json:"failures,omitempty"`
	Sequence               uint64          `json:"sequence"`
	RefreshedAt            time.Time       `json:"refreshed_at"`
}

// EmptyView returns a view with empty, non-nil collections for account.
func EmptyView(account *Account) ViewState {
	return ViewState{
		Account:                account,
		Campaigns:              []Campaign{},
		UserCampaigns:          []Campaign{},
		UserDonations:          []Donation{},
		WalletTotalContributed: decimal.Zero,
	}
}

// ActiveCampaigns returns the campaigns still accepting donations.
func (v ViewState) ActiveCampaigns() []Campaign {
	active := make([]Campaign, 0, len(v.Campaigns))
	for _, c := range v.Campaigns {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return active
}

// CampaignByID looks up a campaign in the projection.
func (v ViewState) CampaignByID(id string) (Campaign, bool) {
	for _, c := range v.Campaigns {
		if c.ID == id {
			return c, true
		}
	}
	return Campaign{}, false
}
