// Package signer holds the signing identity derived from the operator's key.
package signer

import (
	"crypto/ecdsa"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/twap-rebalancer/internal/errs"
)

// Identity signs transactions for one address. Signing never touches the network.
type Identity struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// New wraps an already parsed key.
func New(key *ecdsa.PrivateKey) *Identity {
	return &Identity{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// FromHex parses a hex encoded secp256k1 key, with or without 0x prefix.
func FromHex(hexKey string) (*Identity, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, &errs.InvalidKeyError{Err: errors.New("key is empty")}
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// the underlying error never echoes key material
		return nil, &errs.InvalidKeyError{Err: err}
	}

	return New(key), nil
}

// FromKeystore decrypts a keystore v3 file.
func FromKeystore(path string, password string) (*Identity, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ConfigurationError{Field: "keystore_path", Err: errors.Wrap(err, "failed to read keystore")}
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, &errs.InvalidKeyError{Err: errors.Wrap(err, "failed to decrypt keystore")}
	}

	return New(key.PrivateKey), nil
}

// Address is the default sender of every transaction.
func (i *Identity) Address() common.Address {
	return i.address
}

// Sign builds and signs a legacy transaction.
func (i *Identity) Sign(req *Request) (*Signed, error) {
	if req == nil || req.ChainID == nil || req.GasPrice == nil {
		return nil, errors.New("incomplete sign request")
	}

	//nolint:varnamelen // tx is a common abbreviation for transaction
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		GasPrice: req.GasPrice,
		Gas:      req.GasLimit,
		To:       &req.To,
		Value:    big.NewInt(0),
		Data:     req.Data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(req.ChainID), i.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	txBytes, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal transaction")
	}

	return &Signed{
		Transaction:    signedTx,
		RawTransaction: txBytes,
		TxHash:         signedTx.Hash(),
	}, nil
}
