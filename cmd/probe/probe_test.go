package probe

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/twap-rebalancer/internal/config"
)

func jsonRPCNode(t *testing.T, balance string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		res := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_chainId":
			res["result"] = "0x3e6"
		case "eth_getBalance":
			res["result"] = balance
		case "eth_getTransactionCount":
			res["result"] = "0x2"
		default:
			res["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func readinessConfig(t *testing.T, rpcURL string) config.Config {
	t.Helper()

	abiPath := filepath.Join(t.TempDir(), "Fund.json")
	require.NoError(t, os.WriteFile(abiPath,
		[]byte(`[{"type":"function","name":"rebalanceTWAPStep","inputs":[],"outputs":[],"stateMutability":"nonpayable"}]`), 0o600))

	return config.Config{
		RPCURL:              rpcURL,
		PrivateKey:          "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		ContractAddress:     common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		ABIPath:             abiPath,
		Method:              "rebalanceTWAPStep",
		GasLimit:            1_500_000,
		StepCount:           10,
		StepInterval:        time.Hour,
		ReceiptTimeout:      time.Minute,
		ReceiptPollInterval: time.Second,
	}
}

func TestReadiness(t *testing.T) {
	srv := jsonRPCNode(t, "0xde0b6b3a7640000")
	cfg := readinessConfig(t, srv.URL)

	var out bytes.Buffer
	require.NoError(t, runReadiness(t.Context(), cfg, &out, true))

	selector := hexutil.Encode(crypto.Keccak256([]byte("rebalanceTWAPStep()"))[:4])
	assert.Contains(t, out.String(), "abi: rebalanceTWAPStep() (selector "+selector+") on 0x5FbDB2315678afecb367f032d93F642f64180aa3")
	assert.Contains(t, out.String(), "sender: 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	assert.Contains(t, out.String(), "chain id: 998")
	assert.Contains(t, out.String(), "ready")
}

func TestReadinessChainMismatch(t *testing.T) {
	srv := jsonRPCNode(t, "0xde0b6b3a7640000")
	cfg := readinessConfig(t, srv.URL)
	cfg.ChainID = 999

	var out bytes.Buffer
	err := runReadiness(t.Context(), cfg, &out, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain id")
	assert.Empty(t, out.String())
}

func TestReadinessNoBalance(t *testing.T) {
	srv := jsonRPCNode(t, "0x0")
	cfg := readinessConfig(t, srv.URL)

	err := runReadiness(t.Context(), cfg, &bytes.Buffer{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no balance")
}

func TestLiveness(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/-/healthy" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("Healthy."))
	}))
	t.Cleanup(healthy.Close)

	u, err := url.Parse(healthy.URL)
	require.NoError(t, err)

	cfg := config.Config{
		CheckpointPath: filepath.Join(t.TempDir(), "twap-checkpoint.json"),
		HTTPAddr:       u.Host,
	}

	var out bytes.Buffer
	require.NoError(t, runLiveness(t.Context(), cfg, &out, true))
	assert.Contains(t, out.String(), "alive")

	// leaves nothing behind
	entries, err := os.ReadDir(filepath.Dir(cfg.CheckpointPath))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLivenessCorruptCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twap-checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	err := runLiveness(t.Context(), config.Config{CheckpointPath: path}, &bytes.Buffer{}, false)
	require.Error(t, err)
}

func TestLivenessServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	err := runLiveness(t.Context(), config.Config{HTTPAddr: addr}, &bytes.Buffer{}, false)
	require.Error(t, err)
}
