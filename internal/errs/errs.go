// Package errs holds the error taxonomy of the rebalancer. Every error aborts the run;
// the types exist so callers, logs and metrics can tell the failures apart.
package errs

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ConfigurationError reports missing or invalid setup inputs. Always raised before the loop starts.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configf builds a ConfigurationError for field.
func Configf(field string, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Err: errors.Errorf(format, args...)}
}

// ConnectionError reports an unreachable node. Op names the RPC that failed.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// InvalidKeyError reports malformed key material. The key itself is never part of the message.
type InvalidKeyError struct {
	Err error
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid private key: %v", e.Err)
}

func (e *InvalidKeyError) Unwrap() error { return e.Err }

// TransactionError reports a rejected submission or a reverted / out of gas execution.
// TxHash is zero when the transaction never got a hash.
type TransactionError struct {
	Step   int
	TxHash common.Hash
	Err    error
}

func (e *TransactionError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("transaction error at step %d: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("transaction error at step %d (%s): %v", e.Step, e.TxHash.Hex(), e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// ConfirmationTimeoutError reports a submitted transaction whose receipt did not show up in time.
// The transaction may still be mined later.
type ConfirmationTimeoutError struct {
	Step    int
	TxHash  common.Hash
	Timeout time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("step %d: no receipt for %s after %s", e.Step, e.TxHash.Hex(), e.Timeout)
}

// Kind returns a short stable label for err, used as metric label and in the final log line.
func Kind(err error) string {
	var (
		cfgErr     *ConfigurationError
		connErr    *ConnectionError
		keyErr     *InvalidKeyError
		txErr      *TransactionError
		timeoutErr *ConfirmationTimeoutError
	)

	switch {
	case err == nil:
		return "none"
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &keyErr):
		return "invalid_key"
	case errors.As(err, &timeoutErr):
		return "confirmation_timeout"
	case errors.As(err, &txErr):
		return "transaction"
	case errors.As(err, &connErr):
		return "connection"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}

// IsConnection reports whether err originates from an unreachable node.
func IsConnection(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
