// Package tx builds programmable transactions and serializes them in the
// wallet-standard JSON form (version 2) handed to a signing wallet.
package tx

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const serializedVersion = 2

type argumentKind uint8

const (
	argGasCoin argumentKind = iota
	argInput
	argResult
	argNestedResult
)

// Argument refers to a value usable by a command: the gas coin, an input,
// or the result of an earlier command.
type Argument struct {
	kind   argumentKind
	index  uint16
	nested uint16
}

// GasCoin refers to the coin paying for gas.
func GasCoin() Argument {
	return Argument{kind: argGasCoin}
}

// Nested selects the i-th value of a command result.
func (a Argument) Nested(i uint16) Argument {
	if a.kind != argResult {
		return a
	}
	return Argument{kind: argNestedResult, index: a.index, nested: i}
}

func (a Argument) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case argGasCoin:
		return []byte(`{"GasCoin":true}`), nil
	case argInput:
		return json.Marshal(map[string]uint16{"Input": a.index})
	case argResult:
		return json.Marshal(map[string]uint16{"Result": a.index})
	case argNestedResult:
		return json.Marshal(map[string][2]uint16{"NestedResult": {a.index, a.nested}})
	default:
		return nil, fmt.Errorf("unknown argument kind %d", a.kind)
	}
}

// Input is a transaction input: either BCS pure bytes or an object whose
// version and ownership the wallet resolves before signing.
type Input struct {
	Pure     []byte
	ObjectID string
}

func (in Input) MarshalJSON() ([]byte, error) {
	if in.ObjectID != "" {
		return json.Marshal(map[string]map[string]string{
			"UnresolvedObject": {"objectId": in.ObjectID},
		})
	}
	return json.Marshal(map[string]map[string]string{
		"Pure": {"bytes": base64.StdEncoding.EncodeToString(in.Pure)},
	})
}

type SplitCoins struct {
	Coin    Argument   `json:"coin"`
	Amounts []Argument `json:"amounts"`
}

type MoveCall struct {
	Package       string     `json:"package"`
	Module        string     `json:"module"`
	Function      string     `json:"function"`
	TypeArguments []string   `json:"typeArguments"`
	Arguments     []Argument `json:"arguments"`
}

// Command is one step of the transaction; exactly one field is set.
type Command struct {
	SplitCoins *SplitCoins `json:"SplitCoins,omitempty"`
	MoveCall   *MoveCall   `json:"MoveCall,omitempty"`
}

// Transaction is a programmable transaction under construction.
type Transaction struct {
	Sender   string
	Inputs   []Input
	Commands []Command
}

func New() *Transaction {
	return &Transaction{}
}

func (t *Transaction) SetSender(address string) {
	t.Sender = address
}

// PureString adds a Move String input.
func (t *Transaction) PureString(s string) Argument {
	return t.addInput(Input{Pure: EncodeString(s)})
}

// PureU64 adds a u64 input.
func (t *Transaction) PureU64(v uint64) Argument {
	return t.addInput(Input{Pure: EncodeU64(v)})
}

// Object adds a reference to an existing object by ID.
func (t *Transaction) Object(id string) Argument {
	for i, in := range t.Inputs {
		if in.ObjectID == id {
			return Argument{kind: argInput, index: uint16(i)}
		}
	}
	return t.addInput(Input{ObjectID: id})
}

// SplitCoins carves amounts off coin. The returned argument is the command
// result; use Nested(i) for the i-th new coin.
func (t *Transaction) SplitCoins(coin Argument, amounts ...Argument) Argument {
	return t.addCommand(Command{SplitCoins: &SplitCoins{Coin: coin, Amounts: amounts}})
}

// MoveCall calls package::module::function with args.
func (t *Transaction) MoveCall(pkg, module, function string, args ...Argument) Argument {
	if args == nil {
		args = []Argument{}
	}
	return t.addCommand(Command{MoveCall: &MoveCall{
		Package:       pkg,
		Module:        module,
		Function:      function,
		TypeArguments: []string{},
		Arguments:     args,
	}})
}

func (t *Transaction) addInput(in Input) Argument {
	t.Inputs = append(t.Inputs, in)
	return Argument{kind: argInput, index: uint16(len(t.Inputs) - 1)}
}

func (t *Transaction) addCommand(c Command) Argument {
	t.Commands = append(t.Commands, c)
	return Argument{kind: argResult, index: uint16(len(t.Commands) - 1)}
}

type gasData struct {
	Budget  *string `json:"budget"`
	Price   *string `json:"price"`
	Owner   *string `json:"owner"`
	Payment any     `json:"payment"`
}

type serialized struct {
	Version    int       `json:"version"`
	Sender     *string   `json:"sender"`
	Expiration any       `json:"expiration"`
	GasData    gasData   `json:"gasData"`
	Inputs     []Input   `json:"inputs"`
	Commands   []Command `json:"commands"`
	Digest     *string   `json:"digest"`
}

// MarshalJSON serializes the transaction for the wallet. Gas budget, price
// and payment are left to the wallet.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	s := serialized{
		Version:  serializedVersion,
		Inputs:   t.Inputs,
		Commands: t.Commands,
	}
	if t.Sender != "" {
		sender := t.Sender
		s.Sender = &sender
	}
	if s.Inputs == nil {
		s.Inputs = []Input{}
	}
	if s.Commands == nil {
		s.Commands = []Command{}
	}
	return json.Marshal(s)
}
