package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

// Staking is the full in-memory aggregate root advanced one block at a time
// by the settlement loop. CurHeight plus the three subcomponents are the
// entirety of state the consensus root hash commits to.
type Staking struct {
	CurHeight  uint64
	Validators *ValidatorInfo
	Delegation *DelegationInfo
	CoinBase   *CoinBase
}

// NewStaking builds an empty aggregate around a genesis validator snapshot
// and a CoinBase identity.
func NewStaking(genesis *ValidatorData, cb *CoinBase) *Staking {
	vi := NewValidatorInfo()
	vi.SetAtHeight(0, genesis, false)
	return &Staking{
		CurHeight:  0,
		Validators: vi,
		Delegation: NewDelegationInfo(),
		CoinBase:   cb,
	}
}

// StateRoot produces the canonical serialization of the aggregate and
// returns its SHA-256 digest — the value committed at Commit.
func (s *Staking) StateRoot() [32]byte {
	return sha256.Sum256(s.canonicalBytes())
}

// canonicalBytes serializes Staking deterministically: every map is
// flattened through its keys in sorted order before being written, so two
// nodes holding the same logical state always produce identical bytes.
func (s *Staking) canonicalBytes() []byte {
	var buf bytes.Buffer

	writeU64 := func(v uint64) { _ = binary.Write(&buf, binary.BigEndian, v) }
	writeI64 := func(v int64) { _ = binary.Write(&buf, binary.BigEndian, v) }
	writeBytes := func(b []byte) {
		writeU64(uint64(len(b)))
		buf.Write(b)
	}
	writeStr := func(s string) { writeBytes([]byte(s)) }

	writeU64(s.CurHeight)

	heights := s.Validators.Heights()
	writeU64(uint64(len(heights)))
	for _, h := range heights {
		vd, _ := s.Validators.Get(h)
		writeU64(h)
		pks := make([]PubKey, 0, len(vd.Body))
		for pk := range vd.Body {
			pks = append(pks, pk)
		}
		sort.Slice(pks, func(i, j int) bool { return bytes.Compare(pks[i][:], pks[j][:]) < 0 })
		writeU64(uint64(len(pks)))
		for _, pk := range pks {
			v := vd.Body[pk]
			writeBytes(pk[:])
			writeBytes(v.TDPubKey[:])
			writeI64(v.TDPower)
			writeStr(v.Memo)
		}
		writeI64(vd.CosigRule.Numerator)
		writeI64(vd.CosigRule.Denominator)
	}

	addrs := make([]PubKey, 0, len(s.Delegation.AddrMap))
	for a := range s.Delegation.AddrMap {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
	writeU64(uint64(len(addrs)))
	for _, a := range addrs {
		d := s.Delegation.AddrMap[a]
		writeBytes(a[:])
		writeI64(d.Amount)
		writeBytes(d.Validator[:])
		writeU64(d.StartHeight)
		writeU64(d.EndHeight)
		writeI64(int64(d.State))
		writeI64(d.RwdAmount)
	}
	writeI64(s.Delegation.TotalAmount)

	if s.CoinBase != nil {
		writeBytes(s.CoinBase.PubKey[:])
		banks := make([]string, 0, len(s.CoinBase.Bank))
		for b := range s.CoinBase.Bank {
			banks = append(banks, b)
		}
		sort.Strings(banks)
		writeU64(uint64(len(banks)))
		for _, b := range banks {
			writeStr(b)
		}

		plans := make([]PubKey, 0, len(s.CoinBase.DistributionPlan))
		for p := range s.CoinBase.DistributionPlan {
			plans = append(plans, p)
		}
		sort.Slice(plans, func(i, j int) bool { return bytes.Compare(plans[i][:], plans[j][:]) < 0 })
		writeU64(uint64(len(plans)))
		for _, p := range plans {
			writeBytes(p[:])
			writeI64(s.CoinBase.DistributionPlan[p])
		}

		hist := make([]string, 0, len(s.CoinBase.DistributionHist))
		for h := range s.CoinBase.DistributionHist {
			hist = append(hist, h)
		}
		sort.Strings(hist)
		writeU64(uint64(len(hist)))
		for _, h := range hist {
			writeStr(h)
		}
	}

	return buf.Bytes()
}

// Clone deep-copies the aggregate, used to hand out copy-on-write snapshots
// to concurrent readers per the concurrency model.
func (s *Staking) Clone() *Staking {
	return &Staking{
		CurHeight:  s.CurHeight,
		Validators: s.Validators.Clone(),
		Delegation: s.Delegation.Clone(),
		CoinBase:   s.CoinBase.Clone(),
	}
}
