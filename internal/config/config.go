package config

import (
	"math"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github/chapool/twap-rebalancer/internal/errs"
)

const (
	// EnvPrefix is prepended to every key when read from the environment, e.g. TWAP_RPC_URL.
	EnvPrefix = "TWAP"

	KeyRPCURL              = "rpc_url"
	KeyPrivateKey          = "private_key"
	KeyKeystorePath        = "keystore_path"
	KeyKeystorePassword    = "keystore_password"
	KeyContractAddress     = "contract_address"
	KeyABIPath             = "abi_path"
	KeyMethod              = "method"
	KeyGasLimit            = "gas_limit"
	KeyChainID             = "chain_id"
	KeyStepCount           = "step_count"
	KeyStepIntervalSeconds = "step_interval_seconds"
	KeyWaitAfterFinalStep  = "wait_after_final_step"
	KeyReceiptTimeout      = "receipt_timeout"
	KeyReceiptPollInterval = "receipt_poll_interval"
	KeyCheckpointPath      = "checkpoint_path"
	KeyResume              = "resume"
	KeyHTTPAddr            = "http_addr"
	KeyLogLevel            = "log_level"
	KeyLogPretty           = "log_pretty"

	// KeyConfigFile and KeyEnvFile only select where the other keys come from.
	KeyConfigFile = "config"
	KeyEnvFile    = "env_file"
)

const redacted = "*****"

type Logger struct {
	Level              zerolog.Level `json:"level"`
	PrettyPrintConsole bool          `json:"prettyPrintConsole"`
}

type Config struct {
	RPCURL           string         `json:"rpcUrl"`
	PrivateKey       string         `json:"privateKey"`
	KeystorePath     string         `json:"keystorePath"`
	KeystorePassword string         `json:"keystorePassword"`
	ContractAddress  common.Address `json:"contractAddress"`
	ABIPath          string         `json:"abiPath"`
	Method           string         `json:"method"`
	GasLimit         uint64         `json:"gasLimit"`
	// ChainID of 0 means the node is asked on first use.
	ChainID             uint64        `json:"chainId"`
	StepCount           int           `json:"stepCount"`
	StepInterval        time.Duration `json:"stepInterval"`
	WaitAfterFinalStep  bool          `json:"waitAfterFinalStep"`
	ReceiptTimeout      time.Duration `json:"receiptTimeout"`
	ReceiptPollInterval time.Duration `json:"receiptPollInterval"`
	// CheckpointPath of "" keeps progress in memory only.
	CheckpointPath string `json:"checkpointPath"`
	Resume         bool   `json:"resume"`
	// HTTPAddr of "" disables the operator HTTP server.
	HTTPAddr string `json:"httpAddr"`
	Logger   Logger `json:"logger"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyRPCURL, "https://rpc.hyperliquid-testnet.xyz/evm")
	v.SetDefault(KeyABIPath, "./abi/ExxaFund101.json")
	v.SetDefault(KeyMethod, "rebalanceTWAPStep")
	v.SetDefault(KeyGasLimit, 1_500_000)
	v.SetDefault(KeyChainID, 0)
	v.SetDefault(KeyStepCount, 10)
	v.SetDefault(KeyStepIntervalSeconds, 24*60*60)
	v.SetDefault(KeyWaitAfterFinalStep, false)
	v.SetDefault(KeyReceiptTimeout, 10*time.Minute)
	v.SetDefault(KeyReceiptPollInterval, 3*time.Second)
	v.SetDefault(KeyCheckpointPath, "./twap-checkpoint.json")
	v.SetDefault(KeyResume, true)
	v.SetDefault(KeyHTTPAddr, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogPretty, false)
	v.SetDefault(KeyEnvFile, ".env")
}

// Load resolves and validates the configuration. Precedence, lowest first: defaults,
// config file, environment (TWAP_*, plus the bare PRIVATE_KEY), changed flags.
// The env file is loaded into the process environment before anything is read.
// flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	cfg, err := Read(flags)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Read resolves the configuration like Load but skips Validate, for commands that
// only inspect settings or the checkpoint.
func Read(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	if err := DotEnvTryLoad(v.GetString(KeyEnvFile)); err != nil {
		return Config{}, &errs.ConfigurationError{Field: KeyEnvFile, Err: err}
	}

	if err := v.BindEnv(KeyPrivateKey, EnvPrefix+"_PRIVATE_KEY", "PRIVATE_KEY"); err != nil {
		return Config{}, errors.Wrap(err, "failed to bind private key env")
	}

	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, &errs.ConfigurationError{Field: KeyConfigFile, Err: err}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	level, err := zerolog.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return Config{}, &errs.ConfigurationError{Field: KeyLogLevel, Err: err}
	}

	rawAddress := strings.TrimSpace(v.GetString(KeyContractAddress))
	if rawAddress != "" && !common.IsHexAddress(rawAddress) {
		return Config{}, errs.Configf(KeyContractAddress, "%q is not a hex address", rawAddress)
	}

	intervalSeconds := v.GetInt64(KeyStepIntervalSeconds)
	switch {
	case intervalSeconds < 0:
		return Config{}, errs.Configf(KeyStepIntervalSeconds, "must not be negative, got %d", intervalSeconds)
	case intervalSeconds > math.MaxInt64/int64(time.Second):
		return Config{}, errs.Configf(KeyStepIntervalSeconds, "%d exceeds the longest supported interval", intervalSeconds)
	}

	cfg := Config{
		RPCURL:              strings.TrimSpace(v.GetString(KeyRPCURL)),
		PrivateKey:          strings.TrimSpace(v.GetString(KeyPrivateKey)),
		KeystorePath:        v.GetString(KeyKeystorePath),
		KeystorePassword:    v.GetString(KeyKeystorePassword),
		ContractAddress:     common.HexToAddress(rawAddress),
		ABIPath:             v.GetString(KeyABIPath),
		Method:              v.GetString(KeyMethod),
		GasLimit:            v.GetUint64(KeyGasLimit),
		ChainID:             v.GetUint64(KeyChainID),
		StepCount:           v.GetInt(KeyStepCount),
		StepInterval:        time.Duration(intervalSeconds) * time.Second,
		WaitAfterFinalStep:  v.GetBool(KeyWaitAfterFinalStep),
		ReceiptTimeout:      v.GetDuration(KeyReceiptTimeout),
		ReceiptPollInterval: v.GetDuration(KeyReceiptPollInterval),
		CheckpointPath:      v.GetString(KeyCheckpointPath),
		Resume:              v.GetBool(KeyResume),
		HTTPAddr:            v.GetString(KeyHTTPAddr),
		Logger: Logger{
			Level:              level,
			PrettyPrintConsole: v.GetBool(KeyLogPretty),
		},
	}

	return cfg, nil
}

// Validate checks the invariants the driver relies on.
func (c Config) Validate() error {
	switch {
	case c.RPCURL == "":
		return errs.Configf(KeyRPCURL, "is required")
	case c.PrivateKey == "" && c.KeystorePath == "":
		return errs.Configf(KeyPrivateKey, "is required (set PRIVATE_KEY or %s_PRIVATE_KEY, or %s)", EnvPrefix, KeyKeystorePath)
	case c.ContractAddress == (common.Address{}):
		return errs.Configf(KeyContractAddress, "is required")
	case c.ABIPath == "":
		return errs.Configf(KeyABIPath, "is required")
	case c.Method == "":
		return errs.Configf(KeyMethod, "is required")
	case c.GasLimit == 0:
		return errs.Configf(KeyGasLimit, "must be > 0")
	case c.StepCount < 1:
		return errs.Configf(KeyStepCount, "must be >= 1, got %d", c.StepCount)
	case c.StepInterval < 0:
		return errs.Configf(KeyStepIntervalSeconds, "must not be negative")
	case c.ReceiptTimeout <= 0:
		return errs.Configf(KeyReceiptTimeout, "must be > 0")
	case c.ReceiptPollInterval <= 0:
		return errs.Configf(KeyReceiptPollInterval, "must be > 0")
	}

	return nil
}

// Redacted returns a copy safe to print. RPC URLs are hidden as providers embed API keys in them.
func (c Config) Redacted() Config {
	if c.PrivateKey != "" {
		c.PrivateKey = redacted
	}
	if c.KeystorePassword != "" {
		c.KeystorePassword = redacted
	}
	if c.RPCURL != "" {
		c.RPCURL = redacted
	}
	return c
}
