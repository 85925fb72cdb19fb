package chains

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertError is an on-chain revert surfaced by eth_call. It is a business
// outcome, not a transport fault, and is never retried.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return fmt.Sprintf("execution reverted: %s", e.Reason)
}

// TransportError covers network, timeout, and protocol failures talking to an
// RPC endpoint.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyCallError splits an eth_call failure into revert vs transport.
// Reverts come back as JSON-RPC errors carrying ABI-encoded revert data.
func classifyCallError(op string, err error) error {
	var de rpc.DataError
	if errors.As(err, &de) {
		if reason, ok := decodeRevertData(de.ErrorData()); ok {
			return &RevertError{Reason: reason}
		}
		// some nodes report the revert only in the message
		if strings.Contains(strings.ToLower(de.Error()), "revert") {
			return &RevertError{Reason: strings.TrimSpace(de.Error())}
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "revert") {
		return &RevertError{Reason: strings.TrimSpace(err.Error())}
	}
	return &TransportError{Op: op, Err: err}
}

// decodeRevertData unpacks the Error(string) selector from revert data.
func decodeRevertData(data interface{}) (string, bool) {
	var raw []byte
	switch v := data.(type) {
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return "", false
		}
		raw = b
	case []byte:
		raw = v
	default:
		return "", false
	}
	if len(raw) == 0 {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", true // revert with undecodable payload
	}
	return reason, true
}
