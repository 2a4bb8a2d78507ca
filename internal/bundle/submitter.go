package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kineticshield/core/pkg/types"
)

// ErrNonRetryable marks a submission rejection the block engine will
// never accept on resubmission (bad signature, expired bundle), per
// spec §4.7's failure taxonomy. Retry must not be attempted on this
// error.
var ErrNonRetryable = errors.New("bundle: non-retryable submission rejection")

// BundleSubmitter sends an assembled Bundle to a block-engine endpoint
// and returns its accepted terminal or in-flight status.
type BundleSubmitter interface {
	Submit(ctx context.Context, b *types.Bundle) (types.BundleStatus, error)
}

// RPCSubmitter posts a bundle to a block-engine JSON-RPC endpoint,
// grounded on teacher blockchain.SolanaClient's rpcCall: marshal
// request, POST via http.NewRequestWithContext, decode, check the
// "error" field.
type RPCSubmitter struct {
	endpoint   string
	httpClient *http.Client
}

// NewRPCSubmitter constructs a submitter against a block-engine URL.
func NewRPCSubmitter(endpoint string) *RPCSubmitter {
	return &RPCSubmitter{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type submitRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      int      `json:"id"`
	Method  string   `json:"method"`
	Params  []bundleParams `json:"params"`
}

type bundleParams struct {
	Transactions [][]byte `json:"transactions"`
	Tip          uint64   `json:"tipLamports"`
	ExpirySlots  uint64   `json:"expirySlots"`
}

// Submit posts the bundle's signed transaction blobs plus tip-account
// instruction to the block engine, per spec §6's outbound-submission
// contract.
func (s *RPCSubmitter) Submit(ctx context.Context, b *types.Bundle) (types.BundleStatus, error) {
	payloads := make([][]byte, len(b.Transactions))
	for i, tx := range b.Transactions {
		payloads[i] = tx.Payload
	}

	req := submitRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params: []bundleParams{{
			Transactions: payloads,
			Tip:          b.TipLamports,
			ExpirySlots:  b.ExpirySlots,
		}},
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return types.BundleFailed, fmt.Errorf("bundle: marshal submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return types.BundleFailed, fmt.Errorf("bundle: build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		// Network-level failures are retryable by the caller.
		return types.BundleFailed, fmt.Errorf("bundle: submit request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Result *struct {
			Status string `json:"status"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return types.BundleFailed, fmt.Errorf("bundle: decode submit response: %w", err)
	}

	if result.Error != nil {
		if isNonRetryableCode(result.Error.Code) {
			return types.BundleFailed, fmt.Errorf("%w: %s", ErrNonRetryable, result.Error.Message)
		}
		return types.BundleFailed, fmt.Errorf("bundle: rpc error: %s", result.Error.Message)
	}

	if result.Result != nil && result.Result.Status != "" {
		return types.BundleStatus(result.Result.Status), nil
	}
	return types.BundleSubmitted, nil
}

// isNonRetryableCode reports whether a block-engine error code names a
// rejection resubmission cannot fix (invalid signature, expired
// bundle), per spec §4.7's failure taxonomy. Codes follow the
// JSON-RPC 2.0 custom-range convention the teacher's solana.go assumes
// elsewhere (negative application codes below -32000).
func isNonRetryableCode(code int) bool {
	switch code {
	case -32001, -32002: // invalid signature, bundle expired
		return true
	default:
		return false
	}
}
