package graphql

import (
	"encoding/json"
	"strings"
)

type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors,omitempty"`
}

// Error is a single entry of a GraphQL "errors" array.
type Error struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Errors is returned when the indexer answers with a non-empty errors array.
type Errors []Error

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// ObjectNode is the summary record the indexer returns for one object.
type ObjectNode struct {
	Address      string      `json:"address"`
	Digest       string      `json:"digest"`
	AsMoveObject *MoveObject `json:"asMoveObject,omitempty"`
}

type MoveObject struct {
	Contents *MoveValue `json:"contents,omitempty"`
}

type MoveValue struct {
	JSON json.RawMessage `json:"json,omitempty"`
}

// Projection returns the partial JSON projection embedded in the node, or nil.
func (n ObjectNode) Projection() json.RawMessage {
	if n.AsMoveObject == nil || n.AsMoveObject.Contents == nil {
		return nil
	}
	return n.AsMoveObject.Contents.JSON
}

type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor,omitempty"`
}

// ObjectPage is one page of objects(filter:{type}).
type ObjectPage struct {
	Nodes    []ObjectNode `json:"nodes"`
	PageInfo PageInfo     `json:"pageInfo"`
}

type objectsData struct {
	Objects ObjectPage `json:"objects"`
}
