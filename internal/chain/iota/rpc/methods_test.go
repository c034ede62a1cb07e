package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetObject_RequestsContent(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		assert.Equal(t, "iota_getObject", req.Method)
		require.Len(t, req.Params, 2)
		assert.Equal(t, "0xc1", req.Params[0])
		opts, ok := req.Params[1].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, true, opts["showContent"])

		result := `{"data":{"objectId":"0xc1","version":"7","digest":"D1","type":"0xpkg::fundraising::Campaign",` +
			`"content":{"dataType":"moveObject","type":"0xpkg::fundraising::Campaign","hasPublicTransfer":false,` +
			`"fields":{"id":{"id":"0xc1"},"name":[87,97,116,101,114],"admin":"0xa","total_donated":"2000000000","active":true}}}}`
		resp := Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(result)}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	defer server.Close()

	obj, err := client.GetObject(context.Background(), "0xc1", ObjectDataOptions{ShowContent: true})
	require.NoError(t, err)
	require.NotNil(t, obj.Data)
	assert.Nil(t, obj.Error)
	assert.Equal(t, "0xc1", obj.Data.ObjectID)
	assert.Equal(t, "D1", obj.Data.Digest)
	require.NotNil(t, obj.Data.Content)
	assert.Equal(t, "moveObject", obj.Data.Content.DataType)
	assert.JSONEq(t, `"2000000000"`, string(obj.Data.Content.Fields["total_donated"]))
	assert.JSONEq(t, `true`, string(obj.Data.Content.Fields["active"]))
}

func TestGetObject_NotExists(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		resp := Response{
			JSONRPC: "2.0",
			ID:      1,
			Result:  json.RawMessage(`{"error":{"code":"notExists","object_id":"0xdead"}}`),
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	defer server.Close()

	obj, err := client.GetObject(context.Background(), "0xdead", ObjectDataOptions{ShowContent: true})
	require.NoError(t, err)
	assert.Nil(t, obj.Data)
	require.NotNil(t, obj.Error)
	assert.Equal(t, "notExists", obj.Error.Code)
	assert.Equal(t, "notExists", obj.Error.String())
}

func TestGetObject_CallError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		resp := Response{JSONRPC: "2.0", ID: 1, Error: &RPCError{Code: -32000, Message: "server busy"}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	defer server.Close()

	_, err := client.GetObject(context.Background(), "0xc1", ObjectDataOptions{ShowContent: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iota_getObject(0xc1)")
	var rpcErr *RPCError
	assert.ErrorAs(t, err, &rpcErr)
}

func TestGetBalance(t *testing.T) {
	tests := []struct {
		name       string
		coinType   string
		wantParams int
	}{
		{name: "native coin", coinType: "", wantParams: 1},
		{name: "explicit coin type", coinType: "0x2::iota::IOTA", wantParams: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				var req Request
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "iotax_getBalance", req.Method)
				assert.Len(t, req.Params, tt.wantParams)
				assert.Equal(t, "0xa", req.Params[0])

				result := `{"coinType":"0x2::iota::IOTA","coinObjectCount":3,"totalBalance":"4500000000"}`
				require.NoError(t, json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(result)}))
			})
			defer server.Close()

			bal, err := client.GetBalance(context.Background(), "0xa", tt.coinType)
			require.NoError(t, err)
			assert.Equal(t, "4500000000", bal.TotalBalance)
			assert.Equal(t, 3, bal.CoinObjectCount)
		})
	}
}
