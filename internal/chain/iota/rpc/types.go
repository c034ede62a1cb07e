package rpc

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC request/response types
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// ObjectDataOptions selects which parts of an object iota_getObject returns.
type ObjectDataOptions struct {
	ShowType                bool `json:"showType"`
	ShowOwner               bool `json:"showOwner"`
	ShowPreviousTransaction bool `json:"showPreviousTransaction"`
	ShowDisplay             bool `json:"showDisplay"`
	ShowContent             bool `json:"showContent"`
	ShowBcs                 bool `json:"showBcs"`
	ShowStorageRebate       bool `json:"showStorageRebate"`
}

// iota_getObject response
type ObjectResponse struct {
	Data  *ObjectData          `json:"data,omitempty"`
	Error *ObjectResponseError `json:"error,omitempty"`
}

type ObjectData struct {
	ObjectID string         `json:"objectId"`
	Version  string         `json:"version"`
	Digest   string         `json:"digest"`
	Type     string         `json:"type,omitempty"`
	Content  *ObjectContent `json:"content,omitempty"`
}

// ObjectContent is the parsed Move content of an object. Fields keeps the
// raw JSON of every struct field so callers can decode them by type.
type ObjectContent struct {
	DataType          string                     `json:"dataType"`
	Type              string                     `json:"type"`
	HasPublicTransfer bool                       `json:"hasPublicTransfer"`
	Fields            map[string]json.RawMessage `json:"fields"`
}

// ObjectResponseError is the per-object error of iota_getObject
// (e.g. code "notExists" or "deleted").
type ObjectResponseError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id,omitempty"`
	Version  string `json:"version,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (e *ObjectResponseError) String() string {
	if e.Error != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Error)
	}
	return e.Code
}

// iotax_getBalance response
type Balance struct {
	CoinType        string `json:"coinType"`
	CoinObjectCount int    `json:"coinObjectCount"`
	TotalBalance    string `json:"totalBalance"`
}
