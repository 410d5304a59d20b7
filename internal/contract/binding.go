// Package contract loads the contract ABI and encodes the rebalance call.
package contract

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/twap-rebalancer/internal/errs"
)

const abiField = "abi_path"

// Binding couples a contract address with the one zero argument function called on it.
type Binding struct {
	address common.Address
	abi     abi.ABI
	method  abi.Method
}

// artifact matches compiler outputs (hardhat, truffle, foundry) which wrap the ABI.
type artifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABI reads an ABI from path. Both a bare ABI array and a compiled artifact
// object carrying an "abi" field are accepted.
func LoadABI(path string) (abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, &errs.ConfigurationError{Field: abiField, Err: errors.Wrap(err, "failed to read ABI file")}
	}

	return ParseABI(raw)
}

// ParseABI parses ABI JSON, see LoadABI.
func ParseABI(raw []byte) (abi.ABI, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return abi.ABI{}, errs.Configf(abiField, "ABI file is empty")
	}

	if !json.Valid(raw) {
		return abi.ABI{}, errs.Configf(abiField, "ABI file is not valid JSON")
	}

	if raw[0] == '{' {
		var art artifact
		if err := json.Unmarshal(raw, &art); err != nil {
			return abi.ABI{}, &errs.ConfigurationError{Field: abiField, Err: errors.Wrap(err, "failed to decode artifact")}
		}
		if len(art.ABI) == 0 {
			return abi.ABI{}, errs.Configf(abiField, "artifact has no \"abi\" field")
		}
		raw = art.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, &errs.ConfigurationError{Field: abiField, Err: errors.Wrap(err, "failed to parse ABI")}
	}

	return parsed, nil
}

// NewBinding checks that method exists on parsed and takes no arguments.
func NewBinding(address common.Address, parsed abi.ABI, method string) (*Binding, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return nil, errs.Configf("method", "ABI has no function %q", method)
	}

	if len(m.Inputs) != 0 {
		return nil, errs.Configf("method", "function %q takes %d arguments, expected none", m.Sig, len(m.Inputs))
	}

	return &Binding{
		address: address,
		abi:     parsed,
		method:  m,
	}, nil
}

// Load is LoadABI followed by NewBinding.
func Load(address common.Address, path string, method string) (*Binding, error) {
	parsed, err := LoadABI(path)
	if err != nil {
		return nil, err
	}

	return NewBinding(address, parsed, method)
}

func (b *Binding) Address() common.Address {
	return b.address
}

// Method returns the function signature, e.g. "rebalanceTWAPStep()".
func (b *Binding) Method() string {
	return b.method.Sig
}

// Selector returns the 4 byte function selector.
func (b *Binding) Selector() []byte {
	return common.CopyBytes(b.method.ID)
}

// CallData encodes the call. The result is the same on every invocation.
func (b *Binding) CallData() ([]byte, error) {
	data, err := b.abi.Pack(b.method.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", b.method.Sig)
	}

	return data, nil
}
