package consensus

import (
	"bytes"
	"encoding/gob"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/staking/dispatch"
)

// Envelope is the transaction shape spec.md 6 describes: a list of
// operations, a sequence-id anchor (a recent block height, for expiry), and
// signatures. Signature verification is assumed given per spec.md 1's
// Non-goals — the driver only checks the anchor isn't stale.
type Envelope struct {
	Tx          dispatch.Transaction
	SeqIDAnchor uint64
	Signatures  [][]byte
}

// envelopeMaxAge is how many blocks behind curHeight a SeqIDAnchor may be
// before the envelope is considered expired.
const envelopeMaxAge = 128

// decodeEnvelope deserializes the opaque transaction bytes. gob stands in
// for the reference ledger's canonical bincode-equivalent encoding — no
// third-party binary codec appears anywhere in the retrieval pack, so this
// is a documented stdlib carve-out.
func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	dec := gob.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, errors.NewInvalidInputError("malformed transaction envelope", err)
	}
	return env, nil
}

// EncodeEnvelope is the client-side counterpart, used by test harnesses and
// cmd/stakingd to build deliver_tx payloads.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return nil, errors.NewProcessingError("failed to encode transaction envelope", err)
	}
	return buf.Bytes(), nil
}

func (env Envelope) checkNotExpired(curHeight uint64) error {
	if curHeight > env.SeqIDAnchor+envelopeMaxAge {
		return errors.NewPreconditionError("transaction sequence-id anchor %d expired at height %d", env.SeqIDAnchor, curHeight)
	}
	return nil
}
