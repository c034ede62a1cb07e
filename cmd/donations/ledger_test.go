package main

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
)

// fakeLedger serves the fullnode JSON-RPC, the GraphQL indexer and the wallet
// bridge from one in-memory fundraising package.
type fakeLedger struct {
	t       *testing.T
	pkg     string
	account string
	balance uint64

	mu        sync.Mutex
	version   int
	txs       int
	clockMS   int64
	objects   map[string]*fakeObject
	order     []string
	abortNext string
}

type fakeObject struct {
	id     string
	kind   string
	digest string
	fields map[string]any
}

func newFakeLedger(t *testing.T, pkg, account string) (*fakeLedger, *httptest.Server) {
	l := &fakeLedger{
		t:       t,
		pkg:     pkg,
		account: account,
		balance: 10_000_000_000,
		clockMS: 1_700_000_000_000,
		objects: map[string]*fakeObject{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", l.serveRPC)
	mux.HandleFunc("/wallet", l.serveRPC)
	mux.HandleFunc("/graphql", l.serveGraphQL)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return l, srv
}

type rpcEnvelope struct {
	ID     int               `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func (l *fakeLedger) serveRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcEnvelope
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	l.mu.Lock()
	result, rpcErr := l.handle(req)
	l.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (l *fakeLedger) handle(req rpcEnvelope) (any, map[string]any) {
	switch req.Method {
	case "iota_getObject":
		var id string
		_ = json.Unmarshal(req.Params[0], &id)
		obj, ok := l.objects[id]
		if !ok {
			return map[string]any{"error": map[string]any{"code": "notExists", "object_id": id}}, nil
		}
		return map[string]any{"data": l.objectData(obj)}, nil
	case "iotax_getBalance":
		return map[string]any{
			"coinType":        "0x2::iota::IOTA",
			"coinObjectCount": 1,
			"totalBalance":    strconv.FormatUint(l.balance, 10),
		}, nil
	case "wallet_getAccounts":
		if l.account == "" {
			return []any{}, nil
		}
		return []map[string]string{{"address": l.account}}, nil
	case "wallet_signAndExecuteTransaction":
		var sign struct {
			Transaction string `json:"transaction"`
			Chain       string `json:"chain"`
		}
		_ = json.Unmarshal(req.Params[0], &sign)
		if sign.Chain != "iota:testnet" {
			return nil, map[string]any{"code": -32602, "message": "wrong chain " + sign.Chain}
		}
		return l.execute(sign.Transaction), nil
	}
	return nil, map[string]any{"code": -32601, "message": "method not found"}
}

func (l *fakeLedger) objectData(obj *fakeObject) map[string]any {
	typeTag := model.TypeTag(l.pkg, obj.kind)
	return map[string]any{
		"objectId": obj.id,
		"version":  "1",
		"digest":   obj.digest,
		"type":     typeTag,
		"content": map[string]any{
			"dataType":          "moveObject",
			"type":              typeTag,
			"hasPublicTransfer": false,
			"fields":            obj.fields,
		},
	}
}

func (l *fakeLedger) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Variables map[string]string `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	l.mu.Lock()
	nodes := []map[string]any{}
	for _, id := range l.order {
		obj := l.objects[id]
		if model.TypeTag(l.pkg, obj.kind) != req.Variables["type"] {
			continue
		}
		nodes = append(nodes, map[string]any{
			"address": obj.id,
			"digest":  obj.digest,
			"asMoveObject": map[string]any{
				"contents": map[string]any{"json": map[string]any{"id": obj.id}},
			},
		})
	}
	l.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]any{
			"objects": map[string]any{
				"nodes":    nodes,
				"pageInfo": map[string]any{"hasNextPage": false},
			},
		},
	})
}

type wireArg map[string]json.RawMessage

type wireTx struct {
	Sender string `json:"sender"`
	Inputs []struct {
		Pure *struct {
			Bytes string `json:"bytes"`
		} `json:"Pure"`
		UnresolvedObject *struct {
			ObjectID string `json:"objectId"`
		} `json:"UnresolvedObject"`
	} `json:"inputs"`
	Commands []struct {
		SplitCoins *struct {
			Amounts []wireArg `json:"amounts"`
		} `json:"SplitCoins"`
		MoveCall *struct {
			Package   string    `json:"package"`
			Module    string    `json:"module"`
			Function  string    `json:"function"`
			Arguments []wireArg `json:"arguments"`
		} `json:"MoveCall"`
	} `json:"commands"`
}

func (l *fakeLedger) execute(serialized string) map[string]any {
	l.txs++
	digest := fmt.Sprintf("TX%d", l.txs)
	fail := func(msg string) map[string]any {
		return map[string]any{"digest": digest, "effects": map[string]any{"status": map[string]any{"status": "failure", "error": msg}}}
	}

	var t wireTx
	if err := json.Unmarshal([]byte(serialized), &t); err != nil {
		l.t.Errorf("wallet received malformed transaction: %v", err)
		return fail("malformed")
	}
	if l.abortNext != "" {
		msg := l.abortNext
		l.abortNext = ""
		return fail(msg)
	}

	pure := func(a wireArg) []byte {
		var idx int
		_ = json.Unmarshal(a["Input"], &idx)
		b, _ := base64.StdEncoding.DecodeString(t.Inputs[idx].Pure.Bytes)
		return b
	}
	object := func(a wireArg) string {
		var idx int
		_ = json.Unmarshal(a["Input"], &idx)
		return t.Inputs[idx].UnresolvedObject.ObjectID
	}
	coin := func(a wireArg) uint64 {
		var nested [2]int
		_ = json.Unmarshal(a["NestedResult"], &nested)
		return binary.LittleEndian.Uint64(pure(t.Commands[nested[0]].SplitCoins.Amounts[nested[1]]))
	}

	for _, cmd := range t.Commands {
		call := cmd.MoveCall
		if call == nil {
			continue
		}
		if call.Package != l.pkg || call.Module != model.FundraisingModule {
			return fail("unknown function " + call.Package + "::" + call.Module)
		}
		switch call.Function {
		case "create_campaign":
			l.create(model.CampaignStructName, map[string]any{
				"name":          bytesAsNumbers(bcsString(pure(call.Arguments[0]))),
				"description":   bytesAsNumbers(bcsString(pure(call.Arguments[1]))),
				"admin":         t.Sender,
				"total_donated": "0",
				"active":        true,
			})
		case "donate":
			c := l.objects[object(call.Arguments[0])]
			amount := coin(call.Arguments[1])
			if c == nil || c.fields["active"] != true {
				return fail("MoveAbort(fundraising::donate, 1)")
			}
			total, _ := strconv.ParseUint(c.fields["total_donated"].(string), 10, 64)
			c.fields["total_donated"] = strconv.FormatUint(total+amount, 10)
			l.touch(c)
			l.balance -= amount
			l.clockMS += 1000
			l.create(model.DonationStructName, map[string]any{
				"donor":       t.Sender,
				"amount":      strconv.FormatUint(amount, 10),
				"campaign_id": c.id,
				"timestamp":   strconv.FormatInt(l.clockMS, 10),
			})
		case "close_campaign":
			c := l.objects[object(call.Arguments[0])]
			if c == nil || c.fields["admin"] != t.Sender {
				return fail("MoveAbort(fundraising::close_campaign, 2)")
			}
			c.fields["active"] = false
			l.touch(c)
		default:
			return fail("unknown function " + call.Function)
		}
	}
	return map[string]any{"digest": digest, "effects": map[string]any{"status": map[string]any{"status": "success"}}}
}

func (l *fakeLedger) create(kind string, fields map[string]any) *fakeObject {
	id := fmt.Sprintf("0x%s%d", strings.ToLower(kind[:1]), len(l.order)+1)
	fields["id"] = map[string]string{"id": id}
	obj := &fakeObject{id: id, kind: kind, fields: fields}
	l.touch(obj)
	l.objects[id] = obj
	l.order = append(l.order, id)
	return obj
}

func (l *fakeLedger) touch(obj *fakeObject) {
	l.version++
	obj.digest = fmt.Sprintf("D%d", l.version)
}

func (l *fakeLedger) campaignIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []string
	for _, id := range l.order {
		if l.objects[id].kind == model.CampaignStructName {
			ids = append(ids, id)
		}
	}
	return ids
}

func (l *fakeLedger) setAbortNext(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.abortNext = msg
}

// bcsString strips the ULEB128 length prefix of a BCS string.
func bcsString(b []byte) []byte {
	n, i := uint64(0), 0
	for shift := 0; i < len(b); shift += 7 {
		n |= uint64(b[i]&0x7f) << shift
		i++
		if b[i-1]&0x80 == 0 {
			break
		}
	}
	return b[i : i+int(n)]
}

// bytesAsNumbers renders vector<u8> the way the fullnode does.
func bytesAsNumbers(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
