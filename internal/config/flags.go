package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagName maps a config key to its command line flag, e.g. step_count -> --step-count.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// RegisterGlobalFlags adds the flags shared by every command.
func RegisterGlobalFlags(fs *pflag.FlagSet) {
	fs.String(FlagName(KeyConfigFile), "", "optional config file (yaml, json or toml)")
	fs.String(FlagName(KeyEnvFile), ".env", "env file loaded before reading the environment")
	fs.String(FlagName(KeyLogLevel), "info", "lowest log level written (debug, info, warn, error)")
	fs.Bool(FlagName(KeyLogPretty), false, "human readable console logs instead of JSON")
}

// RegisterRunFlags adds the flags overriding the rebalance settings.
// Secrets have no flags and are read from the environment only.
func RegisterRunFlags(fs *pflag.FlagSet) {
	fs.String(FlagName(KeyRPCURL), "", "JSON-RPC endpoint of the node")
	fs.String(FlagName(KeyKeystorePath), "", "encrypted keystore file used instead of the raw private key")
	fs.String(FlagName(KeyContractAddress), "", "address of the contract to call")
	fs.String(FlagName(KeyABIPath), "", "path to the contract ABI or compiled artifact JSON")
	fs.String(FlagName(KeyMethod), "", "zero argument contract function called on every step")
	fs.Uint64(FlagName(KeyGasLimit), 0, "gas limit for every step transaction")
	fs.Uint64(FlagName(KeyChainID), 0, "chain id used for signing, 0 asks the node")
	fs.Int(FlagName(KeyStepCount), 0, "number of rebalance steps")
	fs.Int64(FlagName(KeyStepIntervalSeconds), 0, "seconds between the confirmation of a step and the next submission")
	fs.Bool(FlagName(KeyWaitAfterFinalStep), false, "also wait one interval after the final step before exiting")
	fs.Duration(FlagName(KeyReceiptTimeout), 0, "how long to wait for a receipt before failing")
	fs.Duration(FlagName(KeyReceiptPollInterval), 0, "how often to poll for a receipt")
	fs.String(FlagName(KeyCheckpointPath), "", "progress file used to resume an interrupted run")
	fs.Bool(FlagName(KeyResume), true, "resume from the checkpoint when it exists")
	fs.String(FlagName(KeyHTTPAddr), "", "listen address of the status and metrics server, empty disables it")
}

var flagKeys = []string{
	KeyConfigFile,
	KeyEnvFile,
	KeyLogLevel,
	KeyLogPretty,
	KeyRPCURL,
	KeyKeystorePath,
	KeyContractAddress,
	KeyABIPath,
	KeyMethod,
	KeyGasLimit,
	KeyChainID,
	KeyStepCount,
	KeyStepIntervalSeconds,
	KeyWaitAfterFinalStep,
	KeyReceiptTimeout,
	KeyReceiptPollInterval,
	KeyCheckpointPath,
	KeyResume,
	KeyHTTPAddr,
}

// bindFlags only binds what the flag set actually declares.
// Unchanged flags never override defaults, env or the config file.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range flagKeys {
		flag := fs.Lookup(FlagName(key))
		if flag == nil {
			continue
		}

		if !flag.Changed {
			continue
		}

		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "failed to bind flag --%s", flag.Name)
		}
	}

	return nil
}
