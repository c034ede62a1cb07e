// Package admin serves the local view API used by a presentation process
// following a running watch session.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/phuchtq/iota-donation-platform/internal/aggregate"
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
)

const maxRequestBodyBytes = 1 << 16

// ViewSource is the view state the API reads and the tab it switches.
// *viewstate.Store implements it.
type ViewSource interface {
	Snapshot() model.ViewState
	Tab() model.Tab
	SetTab(tab model.Tab) bool
}

// Refresher rebuilds the view on request.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Server struct {
	view      ViewSource
	refresher Refresher
	logger    *slog.Logger
}

func NewServer(view ViewSource, refresher Refresher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		view:      view,
		refresher: refresher,
		logger:    logger.With("component", "admin"),
	}
}

// Handler returns the API wrapped in rate limiting and audit logging.
func (s *Server) Handler(limits *RateLimitMiddleware) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/view", s.handleView)
	mux.HandleFunc("GET /admin/v1/tab", s.handleGetTab)
	mux.HandleFunc("PUT /admin/v1/tab", s.handleSetTab)
	mux.HandleFunc("POST /admin/v1/refresh", s.handleRefresh)

	var h http.Handler = mux
	if limits != nil {
		h = limits.Wrap(h)
	}
	return AuditMiddleware(s.logger, h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view.Snapshot())
}

// tabResponse is the content of the selected tab.
type tabResponse struct {
	Tab       model.Tab             `json:"tab"`
	Account   *model.Account        `json:"account,omitempty"`
	Sequence  uint64                `json:"sequence"`
	Campaigns []model.Campaign      `json:"campaigns,omitempty"`
	Donations []donationRow         `json:"donations,omitempty"`
	Total     string                `json:"total_contributed,omitempty"`
	Failures  []model.RecordFailure `json:"failures,omitempty"`
}

type donationRow struct {
	model.Donation
	CampaignName string `json:"campaign_name,omitempty"`
	// SharePercent is absent when the campaign is unknown or its total is zero.
	SharePercent *string `json:"share_percent,omitempty"`
}

func (s *Server) handleGetTab(w http.ResponseWriter, _ *http.Request) {
	view := s.view.Snapshot()
	resp := tabResponse{
		Tab:      s.view.Tab(),
		Account:  view.Account,
		Sequence: view.Sequence,
		Failures: view.Failures,
	}
	switch resp.Tab {
	case model.TabBrowse:
		resp.Campaigns = view.ActiveCampaigns()
	case model.TabMyCampaigns:
		resp.Campaigns = view.UserCampaigns
	case model.TabMyDonations:
		resp.Total = view.WalletTotalContributed.String()
		resp.Donations = make([]donationRow, 0, len(view.UserDonations))
		for _, d := range view.UserDonations {
			row := donationRow{Donation: d}
			if c, ok := view.CampaignByID(d.CampaignID); ok {
				row.CampaignName = c.Name
				if pct, ok := aggregate.ShareOfTotal(d, c); ok {
					share := pct.StringFixed(1)
					row.SharePercent = &share
				}
			}
			resp.Donations = append(resp.Donations, row)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type setTabRequest struct {
	Tab string `json:"tab"`
}

func (s *Server) handleSetTab(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	var req setTabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.view.SetTab(model.Tab(req.Tab)) {
		writeError(w, http.StatusBadRequest, "unknown tab")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresher.Refresh(r.Context()); err != nil {
		s.logger.Warn("requested refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	view := s.view.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"sequence": view.Sequence, "refreshed_at": view.RefreshedAt})
}
