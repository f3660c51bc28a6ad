// Package utxo implements the outbound half of the UTXO ledger contract
// (spec.md 6): a read-only "is this txo still unspent" oracle the CoinBase
// component consults during bank reconciliation. This module never writes
// to the UTXO ledger and never maintains UTXOs itself.
package utxo

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/tracing"
)

// gobCodec mirrors consensus.gobCodec — registering it here too keeps this
// package buildable/usable independently of the consensus package. Both
// register under the same "gob" name; importing both is harmless since the
// registration is idempotent in behavior.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.NewProcessingError("gob marshal failed", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return errors.NewProcessingError("gob unmarshal failed", err)
	}
	return nil
}

func (gobCodec) Name() string { return "gob" }

func init() {
	encoding.RegisterCodec(gobCodec{})
}

var callOption = grpc.CallContentSubtype(gobCodec{}.Name())

// ClientI is the UTXO ledger contract as a Go interface, mirrored after the
// reference node's per-service ClientI pattern
// (services/blockchain/Interface.go).
type ClientI interface {
	IsUnspentTxo(ctx context.Context, sid string) (bool, error)
	GetCommittedState(ctx context.Context) ([]byte, error)
}

// Client is a gRPC-backed ClientI with a bounded exponential backoff around
// transient network errors — never used to retry a call the oracle actively
// rejected, per spec.md 5's "never used to retry a rejected operation."
type Client struct {
	conn       *grpc.ClientConn
	maxRetries uint64
}

var _ ClientI = (*Client)(nil)

// NewClient wraps an established connection. maxRetries bounds the backoff
// retry loop; 0 means use the package default of 5 retries (6 attempts in
// all).
func NewClient(conn *grpc.ClientConn, maxRetries uint64) *Client {
	if maxRetries == 0 {
		maxRetries = 5
	}
	return &Client{conn: conn, maxRetries: maxRetries}
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		// Only an Unavailable status is a transient network error; any other
		// error, including a rejection by the oracle, ends the retry loop.
		if err != nil && status.Code(err) != codes.Unavailable {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// IsUnspentTxo reports whether sid is still unspent on the external UTXO
// ledger.
func (c *Client) IsUnspentTxo(ctx context.Context, sid string) (unspent bool, err error) {
	_, end := tracing.Start(ctx, "utxo.IsUnspentTxo")
	defer end(&err)

	req := &isUnspentTxoRequest{SID: sid}
	resp := new(isUnspentTxoResponse)
	retryErr := c.retry(ctx, func() error {
		return c.conn.Invoke(ctx, "/stakingcore.utxo.Utxo/IsUnspentTxo", req, resp, callOption)
	})
	if retryErr != nil {
		return false, errors.NewStorageError("is_unspent_txo oracle call failed for %s", sid, retryErr)
	}
	return resp.Unspent, nil
}

// GetCommittedState fetches a read-only view of the external ledger's
// committed state.
func (c *Client) GetCommittedState(ctx context.Context) (state []byte, err error) {
	_, end := tracing.Start(ctx, "utxo.GetCommittedState")
	defer end(&err)

	resp := new(getCommittedStateResponse)
	retryErr := c.retry(ctx, func() error {
		return c.conn.Invoke(ctx, "/stakingcore.utxo.Utxo/GetCommittedState", &emptyRequest{}, resp, callOption)
	})
	if retryErr != nil {
		return nil, errors.NewStorageError("get_committed_state oracle call failed", retryErr)
	}
	return resp.State, nil
}

type isUnspentTxoRequest struct{ SID string }
type isUnspentTxoResponse struct{ Unspent bool }
type getCommittedStateResponse struct{ State []byte }
type emptyRequest struct{}

// dialTimeout is a bound for an initial connection attempt to the oracle;
// nothing in this module applies it, and cmd/stakingd dials without one.
const dialTimeout = 5 * time.Second
