package signer_test

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/twap-rebalancer/internal/errs"
	"github/chapool/twap-rebalancer/internal/signer"
)

// well known hardhat account #0
const (
	testKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestFromHex(t *testing.T) {
	for _, key := range []string{testKey, testKey[2:], "  " + testKey + "\n"} {
		id, err := signer.FromHex(key)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(testAddress), id.Address())
	}
}

func TestFromHexInvalid(t *testing.T) {
	for _, key := range []string{"", "0x", "0x1234", "zz" + testKey[4:]} {
		_, err := signer.FromHex(key)

		var keyErr *errs.InvalidKeyError
		require.ErrorAs(t, err, &keyErr, "key %q", key)
		assert.NotContains(t, err.Error(), testKey[4:])
	}
}

func TestSign(t *testing.T) {
	id, err := signer.FromHex(testKey)
	require.NoError(t, err)

	chainID := big.NewInt(998)
	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	data := crypto.Keccak256([]byte("rebalanceTWAPStep()"))[:4]

	signed, err := id.Sign(&signer.Request{
		ChainID:  chainID,
		To:       to,
		Nonce:    7,
		GasLimit: 1_500_000,
		GasPrice: big.NewInt(1_000_000_000),
		Data:     data,
	})
	require.NoError(t, err)

	tx := signed.Transaction
	assert.Equal(t, signed.TxHash, tx.Hash())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(1_500_000), tx.Gas())
	assert.Equal(t, &to, tx.To())
	assert.Equal(t, data, tx.Data())
	assert.Equal(t, 0, tx.Value().Sign())
	assert.Zero(t, chainID.Cmp(tx.ChainId()))

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, id.Address(), sender)

	decoded := new(types.Transaction)
	require.NoError(t, decoded.UnmarshalBinary(signed.RawTransaction))
	assert.Equal(t, signed.TxHash, decoded.Hash())
}

func TestSignIncompleteRequest(t *testing.T) {
	id, err := signer.FromHex(testKey)
	require.NoError(t, err)

	_, err = id.Sign(&signer.Request{GasPrice: big.NewInt(1)})
	require.Error(t, err)

	_, err = id.Sign(nil)
	require.Error(t, err)
}

func TestFromKeystore(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	addr := crypto.PubkeyToAddress(key.PublicKey)
	keyJSON, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    addr,
		PrivateKey: key,
	}, "correct horse", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, os.WriteFile(path, keyJSON, 0o600))

	id, err := signer.FromKeystore(path, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, addr, id.Address())

	_, err = signer.FromKeystore(path, "wrong")
	var keyErr *errs.InvalidKeyError
	require.ErrorAs(t, err, &keyErr)

	_, err = signer.FromKeystore(filepath.Join(t.TempDir(), "missing.json"), "correct horse")
	var cfgErr *errs.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestPromptPasswordWithoutTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	_, err = signer.PromptPassword(int(f.Fd()), os.Stderr, "Password: ")
	require.ErrorIs(t, err, signer.ErrNoTerminal)
}
