package dispatch

type Action string

const (
	ActionCreateCampaign Action = "create_campaign"
	ActionDonate         Action = "donate"
	ActionCloseCampaign  Action = "close_campaign"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseConfirmed  Phase = "confirmed"
	PhaseRefreshing Phase = "refreshing"
	PhaseRejected   Phase = "rejected"
)

// State is the dispatcher's current step. Action and RequestID are empty
// when idle.
type State struct {
	Phase     Phase
	Action    Action
	RequestID string
}

type messages struct {
	success string
	failure string
}

var actionMessages = map[Action]messages{
	ActionCreateCampaign: {success: "Campaign created successfully!", failure: "Error creating campaign"},
	ActionDonate:         {success: "Donation successful!", failure: "Error during donation"},
	ActionCloseCampaign:  {success: "Campaign closed successfully!", failure: "Error closing campaign"},
}
