// Package query exposes the read-only query surface supplemented from the
// original ledger's public accessors (SPEC_FULL.md 12): validator power
// lookups, cached between commits since they may be served concurrently with
// the next block's mutation, and delegation reward/bond queries, which read
// the ledger directly without a cache.
package query

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/staking/delegation"
	"github.com/fra-chain/stakingcore/staking/validator"
)

// Surface serves cached reads over the registry and ledger. Caches are
// invalidated wholesale on every Commit — they are a read-path optimization
// only and never participate in the mutation path.
type Surface struct {
	registry *validator.Registry
	ledger   *delegation.Ledger

	powerCache *ttlcache.Cache[powerKey, int64]
	ttl        time.Duration
}

// powerKey identifies a cached power lookup by height and validator.
type powerKey struct {
	h  uint64
	pk model.PubKey
}

// New builds a Surface with a short-TTL cache, invalidated explicitly on
// Commit via InvalidateAll rather than relying on TTL expiry alone.
func New(registry *validator.Registry, ledger *delegation.Ledger, ttl time.Duration) *Surface {
	cache := ttlcache.New[powerKey, int64](ttlcache.WithTTL[powerKey, int64](ttl))
	go cache.Start()
	return &Surface{registry: registry, ledger: ledger, powerCache: cache, ttl: ttl}
}

// InvalidateAll drops every cached entry; called after each Commit.
func (s *Surface) InvalidateAll() {
	s.powerCache.DeleteAll()
}

// Close stops the cache's background eviction goroutine.
func (s *Surface) Close() {
	s.powerCache.Stop()
}

// ValidatorPower returns pk's current power in the effective set at h,
// reading through the cache.
func (s *Surface) ValidatorPower(h uint64, pk model.PubKey) (int64, error) {
	key := powerKey{h: h, pk: pk}
	if item := s.powerCache.Get(key); item != nil {
		return item.Value(), nil
	}

	vd, err := s.registry.GetEffectiveAtHeight(h)
	if err != nil {
		return 0, err
	}
	v, ok := vd.Body[pk]
	if !ok {
		return 0, errors.NewNotFoundError("unknown validator")
	}

	s.powerCache.Set(key, v.TDPower, s.ttl)
	return v.TDPower, nil
}

// TotalPower returns the effective set's total power at h — never cached
// since it changes with every delegation, bonding and penalty.
func (s *Surface) TotalPower(h uint64) int64 {
	return s.registry.TotalPower(h)
}

// DelegationRewards returns addr's currently accrued (possibly negative)
// reward.
func (s *Surface) DelegationRewards(addr model.PubKey) (int64, error) {
	d, ok := s.ledger.Get(addr)
	if !ok {
		return 0, errors.NewNotFoundError("no delegation for address")
	}
	return d.RwdAmount, nil
}

// DelegationBonds returns addr's principal and lifecycle state.
func (s *Surface) DelegationBonds(addr model.PubKey) (amount int64, state model.DelegationState, err error) {
	d, ok := s.ledger.Get(addr)
	if !ok {
		return 0, 0, errors.NewNotFoundError("no delegation for address")
	}
	return d.Amount, d.State, nil
}

// EffectiveSetBeforeHeight returns the snapshot effective strictly before h
// (h-1), used by diagnostics that want "the set prior to this block's
// changes" (SPEC_FULL.md 12, item 2's "_before_height" query variants).
func (s *Surface) EffectiveSetBeforeHeight(h uint64) (*model.ValidatorData, error) {
	if h == 0 {
		return nil, errors.NewNotFoundError("no snapshot before genesis")
	}
	return s.registry.GetEffectiveAtHeight(h - 1)
}
