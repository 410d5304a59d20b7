package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Request describes an unsigned legacy transaction
type Request struct {
	ChainID  *big.Int       // Chain ID used for replay protection
	To       common.Address // Contract address
	Nonce    uint64         // Sender nonce
	GasLimit uint64         // Gas limit
	GasPrice *big.Int       // Gas price in wei
	Data     []byte         // Encoded call data
}

// Signed is a signed transaction ready to broadcast
type Signed struct {
	Transaction    *types.Transaction
	RawTransaction []byte      // RLP-encoded signed transaction
	TxHash         common.Hash // Transaction hash
}
