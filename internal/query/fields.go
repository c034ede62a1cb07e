package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/rpc"
	"github.com/phuchtq/iota-donation-platform/internal/decode"
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
)

// fields reads Move struct fields as returned in ObjectContent.Fields.
type fields map[string]json.RawMessage

func (f fields) raw(name string) (json.RawMessage, error) {
	v, ok := f[name]
	if !ok || len(v) == 0 || string(v) == "null" {
		return nil, fmt.Errorf("field %q missing", name)
	}
	return v, nil
}

// uid reads a UID ({"id":"0x.."}) or a plain ID string.
func (f fields) uid(name string) (string, error) {
	v, err := f.raw(name)
	if err != nil {
		return "", err
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s, nil
	}
	var wrapped struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(v, &wrapped); err != nil || len(wrapped.ID) == 0 {
		return "", fmt.Errorf("field %q: not an object id", name)
	}
	return fields{"id": wrapped.ID}.uid("id")
}

func (f fields) address(name string) (string, error) {
	v, err := f.raw(name)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("field %q: %w", name, err)
	}
	return s, nil
}

func (f fields) text(name string) (string, error) {
	v, err := f.raw(name)
	if err != nil {
		return "", err
	}
	return decode.DecodeJSON(v), nil
}

// u64 accepts the string form the ledger uses for 64-bit integers as well as
// a bare JSON number.
func (f fields) u64(name string) (uint64, error) {
	v, err := f.raw(name)
	if err != nil {
		return 0, err
	}
	s := strings.Trim(string(v), `"`)
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: not a u64: %s", name, s)
	}
	return n, nil
}

func (f fields) boolean(name string) (bool, error) {
	v, err := f.raw(name)
	if err != nil {
		return false, err
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		return false, fmt.Errorf("field %q: %w", name, err)
	}
	return b, nil
}

func contentFields(obj *rpc.ObjectData) (fields, error) {
	if obj == nil || obj.Content == nil || obj.Content.Fields == nil {
		return nil, fmt.Errorf("object has no content fields")
	}
	return fields(obj.Content.Fields), nil
}

// toCampaign maps Campaign{id, name, description, admin, total_donated, active}.
func toCampaign(obj *rpc.ObjectData) (model.Campaign, error) {
	f, err := contentFields(obj)
	if err != nil {
		return model.Campaign{}, err
	}
	var c model.Campaign
	if c.ID, err = f.uid("id"); err != nil {
		return model.Campaign{}, err
	}
	if c.Name, err = f.text("name"); err != nil {
		return model.Campaign{}, err
	}
	if c.Description, err = f.text("description"); err != nil {
		return model.Campaign{}, err
	}
	if c.Creator, err = f.address("admin"); err != nil {
		return model.Campaign{}, err
	}
	total, err := f.u64("total_donated")
	if err != nil {
		return model.Campaign{}, err
	}
	c.TotalDonated = model.FromBaseUnits(total)
	if c.IsActive, err = f.boolean("active"); err != nil {
		return model.Campaign{}, err
	}
	return c, nil
}

// toDonation maps Donation{id, donor, amount, campaign_id, timestamp}.
func toDonation(obj *rpc.ObjectData) (model.Donation, error) {
	f, err := contentFields(obj)
	if err != nil {
		return model.Donation{}, err
	}
	var d model.Donation
	if d.ID, err = f.uid("id"); err != nil {
		return model.Donation{}, err
	}
	if d.Donor, err = f.address("donor"); err != nil {
		return model.Donation{}, err
	}
	amount, err := f.u64("amount")
	if err != nil {
		return model.Donation{}, err
	}
	if amount == 0 {
		return model.Donation{}, fmt.Errorf("field %q: donation amount is zero", "amount")
	}
	d.Amount = model.FromBaseUnits(amount)
	if d.CampaignID, err = f.uid("campaign_id"); err != nil {
		return model.Donation{}, err
	}
	ms, err := f.u64("timestamp")
	if err != nil {
		return model.Donation{}, err
	}
	d.Timestamp = time.UnixMilli(int64(ms)).UTC()
	return d, nil
}
