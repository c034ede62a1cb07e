package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/chain/classify"
	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/rpc"
	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/tx"
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
	"github.com/phuchtq/iota-donation-platform/internal/notice"
	"github.com/phuchtq/iota-donation-platform/internal/wallet"
	walletmocks "github.com/phuchtq/iota-donation-platform/internal/wallet/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"
)

const testPackage = "0xpkg"

type fakeView struct {
	account   *model.Account
	campaigns map[string]model.Campaign
}

func (v *fakeView) Account() *model.Account { return v.account }

func (v *fakeView) Campaign(id string) (model.Campaign, bool) {
	c, ok := v.campaigns[id]
	return c, ok
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice.Notice
}

func (n *recordingNotifier) Send(_ context.Context, nt notice.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, nt)
	return nil
}

type harness struct {
	d         *Dispatcher
	wallet    *walletmocks.MockWallet
	view      *fakeView
	refresher *fakeRefresher
	notices   *recordingNotifier
	phases    []Phase
}

func newHarness(t *testing.T) *harness {
	ctrl := gomock.NewController(t)
	h := &harness{
		wallet: walletmocks.NewMockWallet(ctrl),
		view: &fakeView{
			account: &model.Account{Address: "0xa"},
			campaigns: map[string]model.Campaign{
				"0xopen":   {ID: "0xopen", Creator: "0xa", IsActive: true, TotalDonated: decimal.Zero},
				"0xclosed": {ID: "0xclosed", Creator: "0xa", IsActive: false, TotalDonated: decimal.NewFromInt(2)},
				"0xother":  {ID: "0xother", Creator: "0xb", IsActive: true, TotalDonated: decimal.Zero},
			},
		},
		refresher: &fakeRefresher{},
		notices:   &recordingNotifier{},
	}
	h.d = New(h.wallet, h.view, h.refresher, h.notices, Config{PackageID: testPackage, Network: "testnet"}, nil,
		WithObserver(func(s State) { h.phases = append(h.phases, s.Phase) }))
	return h
}

func success(digest string) *wallet.ExecutionResult {
	return &wallet.ExecutionResult{Digest: digest, Effects: &wallet.ExecutionEffects{Status: wallet.ExecutionStatus{Status: "success"}}}
}

// txJSON decodes the serialized form of a captured transaction.
func txJSON(t *testing.T, txn *tx.Transaction) map[string]any {
	t.Helper()
	raw, err := json.Marshal(txn)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func moveCall(t *testing.T, serialized map[string]any, i int) map[string]any {
	t.Helper()
	cmds := serialized["commands"].([]any)
	require.Greater(t, len(cmds), i)
	call, ok := cmds[i].(map[string]any)["MoveCall"].(map[string]any)
	require.True(t, ok, "command %d is not a MoveCall", i)
	return call
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "1.5", want: 1_500_000_000},
		{in: "0.000000001", want: 1},
		{in: "2", want: 2_000_000_000},
		{in: " 3 ", want: 3_000_000_000},
		{in: "0.0000000019", want: 1},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
		{in: "0.0000000001", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, "amount", vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreconditions_NoWalletCalls(t *testing.T) {
	tests := []struct {
		name    string
		account *model.Account
		run     func(*Dispatcher) error
		wantIs  error
		wantVal string
	}{
		{name: "create without account", run: func(d *Dispatcher) error {
			_, err := d.CreateCampaign(context.Background(), "n", "d")
			return err
		}, wantIs: ErrNotConnected},
		{name: "donate without account", run: func(d *Dispatcher) error {
			_, err := d.Donate(context.Background(), "0xopen", "1")
			return err
		}, wantIs: ErrNotConnected},
		{name: "close without account", run: func(d *Dispatcher) error {
			_, err := d.CloseCampaign(context.Background(), "0xopen")
			return err
		}, wantIs: ErrNotConnected},
		{name: "empty name", account: &model.Account{Address: "0xa"}, run: func(d *Dispatcher) error {
			_, err := d.CreateCampaign(context.Background(), "  ", "d")
			return err
		}, wantVal: "name"},
		{name: "empty description", account: &model.Account{Address: "0xa"}, run: func(d *Dispatcher) error {
			_, err := d.CreateCampaign(context.Background(), "n", "")
			return err
		}, wantVal: "description"},
		{name: "zero donation", account: &model.Account{Address: "0xa"}, run: func(d *Dispatcher) error {
			_, err := d.Donate(context.Background(), "0xopen", "0")
			return err
		}, wantVal: "amount"},
		{name: "donation without campaign", account: &model.Account{Address: "0xa"}, run: func(d *Dispatcher) error {
			_, err := d.Donate(context.Background(), "", "1")
			return err
		}, wantVal: "campaign"},
		{name: "donate to closed campaign", account: &model.Account{Address: "0xa"}, run: func(d *Dispatcher) error {
			_, err := d.Donate(context.Background(), "0xclosed", "1")
			return err
		}, wantIs: ErrCampaignClosed},
		{name: "close closed campaign", account: &model.Account{Address: "0xa"}, run: func(d *Dispatcher) error {
			_, err := d.CloseCampaign(context.Background(), "0xclosed")
			return err
		}, wantIs: ErrCampaignClosed},
		{name: "close other creator's campaign", account: &model.Account{Address: "0xa"}, run: func(d *Dispatcher) error {
			_, err := d.CloseCampaign(context.Background(), "0xother")
			return err
		}, wantIs: ErrNotCampaignCreator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.view.account = tt.account

			err := tt.run(h.d)
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantVal != "" {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantVal, vErr.Field)
			}
			assert.Empty(t, h.notices.notices, "precondition failures emit no notice")
			assert.Empty(t, h.phases)
			assert.Equal(t, 0, h.refresher.calls)
		})
	}
}

func TestCreateCampaign_Success(t *testing.T) {
	h := newHarness(t)

	var captured *tx.Transaction
	h.wallet.EXPECT().SignAndExecute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, txn *tx.Transaction) (*wallet.ExecutionResult, error) {
			captured = txn
			return success("TX1"), nil
		})

	receipt, err := h.d.CreateCampaign(context.Background(), "Water Well", "Clean water access")
	require.NoError(t, err)
	assert.Equal(t, "TX1", receipt.Digest)
	assert.Equal(t, ActionCreateCampaign, receipt.Action)
	assert.NotEmpty(t, receipt.RequestID)

	serialized := txJSON(t, captured)
	assert.Equal(t, "0xa", serialized["sender"])
	call := moveCall(t, serialized, 0)
	assert.Equal(t, testPackage, call["package"])
	assert.Equal(t, "fundraising", call["module"])
	assert.Equal(t, "create_campaign", call["function"])
	assert.Len(t, call["arguments"], 2)
	assert.Equal(t, tx.EncodeString("Water Well"), captured.Inputs[0].Pure)
	assert.Equal(t, tx.EncodeString("Clean water access"), captured.Inputs[1].Pure)

	assert.Equal(t, []Phase{PhaseSubmitting, PhaseConfirmed, PhaseRefreshing, PhaseIdle}, h.phases)
	assert.Equal(t, State{Phase: PhaseIdle}, h.d.State())
	assert.Equal(t, 1, h.refresher.calls)
	require.Len(t, h.notices.notices, 1)
	assert.Equal(t, notice.KindSuccess, h.notices.notices[0].Kind)
	assert.Equal(t, "Campaign created successfully!", h.notices.notices[0].Message)
	assert.Equal(t, receipt.RequestID, h.notices.notices[0].Fields["request_id"])
}

func TestDonate_BuildsSplitAndCall(t *testing.T) {
	h := newHarness(t)

	var captured *tx.Transaction
	h.wallet.EXPECT().SignAndExecute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, txn *tx.Transaction) (*wallet.ExecutionResult, error) {
			captured = txn
			return success("TX2"), nil
		})

	_, err := h.d.Donate(context.Background(), "0xopen", "1.5")
	require.NoError(t, err)

	require.Len(t, captured.Inputs, 2)
	assert.Equal(t, tx.EncodeU64(1_500_000_000), captured.Inputs[0].Pure)
	assert.Equal(t, "0xopen", captured.Inputs[1].ObjectID)

	serialized := txJSON(t, captured)
	split := serialized["commands"].([]any)[0].(map[string]any)["SplitCoins"].(map[string]any)
	assert.Equal(t, map[string]any{"GasCoin": true}, split["coin"])
	call := moveCall(t, serialized, 1)
	assert.Equal(t, "donate", call["function"])
	assert.Equal(t, []any{
		map[string]any{"Input": float64(1)},
		map[string]any{"NestedResult": []any{float64(0), float64(0)}},
	}, call["arguments"])

	require.Len(t, h.notices.notices, 1)
	assert.Equal(t, "Donation successful!", h.notices.notices[0].Message)
}

func TestDonate_UnknownCampaignIsSubmitted(t *testing.T) {
	h := newHarness(t)
	h.wallet.EXPECT().SignAndExecute(gomock.Any(), gomock.Any()).Return(success("TX"), nil)

	_, err := h.d.Donate(context.Background(), "0xnotloaded", "1")
	require.NoError(t, err)
}

func TestCloseCampaign_Success(t *testing.T) {
	h := newHarness(t)

	var captured *tx.Transaction
	h.wallet.EXPECT().SignAndExecute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, txn *tx.Transaction) (*wallet.ExecutionResult, error) {
			captured = txn
			return success("TX3"), nil
		})

	_, err := h.d.CloseCampaign(context.Background(), "0xopen")
	require.NoError(t, err)
	call := moveCall(t, txJSON(t, captured), 0)
	assert.Equal(t, "close_campaign", call["function"])
	assert.Equal(t, "Campaign closed successfully!", h.notices.notices[0].Message)
}

func TestSubmit_WalletRejection(t *testing.T) {
	h := newHarness(t)
	h.wallet.EXPECT().SignAndExecute(gomock.Any(), gomock.Any()).
		Return(nil, &rpc.RPCError{Code: 4001, Message: "User rejected the request"})

	receipt, err := h.d.Donate(context.Background(), "0xopen", "2")
	require.Error(t, err)
	assert.Nil(t, receipt)

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, ActionDonate, actionErr.Action)
	assert.Equal(t, classify.ClassTerminal, actionErr.Class)
	assert.NotEmpty(t, actionErr.RequestID)

	assert.Equal(t, []Phase{PhaseSubmitting, PhaseRejected, PhaseIdle}, h.phases)
	assert.Equal(t, 0, h.refresher.calls, "rejected actions leave derived state alone")
	require.Len(t, h.notices.notices, 1)
	assert.Equal(t, notice.KindError, h.notices.notices[0].Kind)
	assert.Equal(t, "Error during donation", h.notices.notices[0].Message)
}

func TestSubmit_FailedEffectsIsRejection(t *testing.T) {
	h := newHarness(t)
	h.wallet.EXPECT().SignAndExecute(gomock.Any(), gomock.Any()).Return(&wallet.ExecutionResult{
		Digest:  "TXF",
		Effects: &wallet.ExecutionEffects{Status: wallet.ExecutionStatus{Status: "failure", Error: "MoveAbort(campaign closed)"}},
	}, nil)

	_, err := h.d.CloseCampaign(context.Background(), "0xopen")
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Contains(t, err.Error(), "MoveAbort")
	assert.Equal(t, "Error closing campaign", h.notices.notices[0].Message)
	assert.Equal(t, 0, h.refresher.calls)
}

func TestSubmit_RefreshErrorKeepsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.refresher.err = errors.New("indexer down")
	h.wallet.EXPECT().SignAndExecute(gomock.Any(), gomock.Any()).Return(success("TX4"), nil)

	receipt, err := h.d.CreateCampaign(context.Background(), "n", "d")
	require.NotNil(t, receipt)
	assert.Equal(t, "TX4", receipt.Digest)

	var refreshErr *RefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, ActionCreateCampaign, refreshErr.Action)
	var actionErr *ActionError
	assert.False(t, errors.As(err, &actionErr))
	assert.Equal(t, notice.KindSuccess, h.notices.notices[0].Kind)
}

func TestSubmit_SecondActionWhileInFlight(t *testing.T) {
	h := newHarness(t)
	entered := make(chan struct{})
	release := make(chan struct{})

	h.wallet.EXPECT().SignAndExecute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *tx.Transaction) (*wallet.ExecutionResult, error) {
			close(entered)
			<-release
			return success("TX5"), nil
		}).Times(1)

	done := make(chan error, 1)
	go func() {
		_, err := h.d.Donate(context.Background(), "0xopen", "1")
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first action never reached the wallet")
	}
	assert.Equal(t, PhaseSubmitting, h.d.State().Phase)

	_, err := h.d.CreateCampaign(context.Background(), "n", "d")
	assert.ErrorIs(t, err, ErrActionInFlight)

	close(release)
	require.NoError(t, <-done)

	h.wallet.EXPECT().SignAndExecute(gomock.Any(), gomock.Any()).Return(success("TX6"), nil)
	_, err = h.d.CreateCampaign(context.Background(), "n", "d")
	assert.NoError(t, err, "token released after completion")
}

func TestDonate_SpanCarriesFullBaseUnits(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	defer otel.SetTracerProvider(prev)

	h := newHarness(t)
	h.wallet.EXPECT().SignAndExecute(gomock.Any(), gomock.Any()).Return(success("TX"), nil)

	// math.MaxUint64 base units, past the int64 range
	_, err := h.d.Donate(context.Background(), "0xopen", "18446744073.709551615")
	require.NoError(t, err)

	spans := rec.Ended()
	require.NotEmpty(t, spans)
	assert.Contains(t, spans[0].Attributes(), attribute.String("amount.base_units", "18446744073709551615"))
}
