package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/phuchtq/iota-donation-platform/internal/aggregate"
	"github.com/phuchtq/iota-donation-platform/internal/dispatch"
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
	"github.com/shopspring/decimal"
)

const dateLayout = "Jan 2, 2006 15:04 MST"

// formatAmount prints the exact IOTA amount without rounding; one base unit
// is 0.000000001.
func formatAmount(d decimal.Decimal) string {
	return d.String()
}

func status(c model.Campaign) string {
	if c.IsActive {
		return "active"
	}
	return "closed"
}

func renderBrowse(out io.Writer, view model.ViewState) {
	active := view.ActiveCampaigns()
	fmt.Fprintf(out, "Active campaigns: %d\n", len(active))
	if len(active) == 0 {
		fmt.Fprintln(out, "No active campaigns.")
		renderFailures(out, view)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRAISED (IOTA)\tCREATOR\tDESCRIPTION")
	for _, c := range active {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, formatAmount(c.TotalDonated), c.Creator, c.Description)
	}
	tw.Flush()
	renderFailures(out, view)
}

func renderMyCampaigns(out io.Writer, view model.ViewState) {
	fmt.Fprintf(out, "Your campaigns: %d\n", len(view.UserCampaigns))
	if len(view.UserCampaigns) == 0 {
		fmt.Fprintln(out, "No campaigns yet.")
		renderFailures(out, view)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tRAISED (IOTA)")
	for _, c := range view.UserCampaigns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, status(c), formatAmount(c.TotalDonated))
	}
	tw.Flush()
	renderFailures(out, view)
}

func renderMyDonations(out io.Writer, view model.ViewState) {
	fmt.Fprintf(out, "Your donations: %d (total %s IOTA)\n", len(view.UserDonations), formatAmount(view.WalletTotalContributed))
	if len(view.UserDonations) == 0 {
		fmt.Fprintln(out, "No donations yet.")
		renderFailures(out, view)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CAMPAIGN\tAMOUNT (IOTA)\tDATE\tSHARE")
	for _, d := range view.UserDonations {
		name := "unknown campaign " + d.CampaignID
		share := "-"
		if c, ok := view.CampaignByID(d.CampaignID); ok {
			name = c.Name
			if pct, ok := aggregate.ShareOfTotal(d, c); ok {
				share = pct.StringFixed(1) + "% of total"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, formatAmount(d.Amount), d.Timestamp.Format(dateLayout), share)
	}
	tw.Flush()
	renderFailures(out, view)
}

func renderFailures(out io.Writer, view model.ViewState) {
	if len(view.Failures) == 0 {
		return
	}
	fmt.Fprintf(out, "%d records could not be loaded:\n", len(view.Failures))
	for _, f := range view.Failures {
		fmt.Fprintf(out, "  %s %s: %s\n", f.Kind, f.Address, f.Error)
	}
}

func printReceipt(out io.Writer, r *dispatch.Receipt) {
	if r == nil {
		return
	}
	fmt.Fprintf(out, "transaction %s (request %s)\n", r.Digest, r.RequestID)
}
