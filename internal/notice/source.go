package notice

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"fundops/backend/pkg/models"
)

// PeriodLister reads a fund's notice periods from storage.
type PeriodLister interface {
	ListNoticePeriods(ctx context.Context, fundID int64) ([]models.FundNoticePeriod, error)
}

// CachedSource serves notice periods through a TTL cache. A zero TTL reads
// through on every call.
type CachedSource struct {
	lister PeriodLister
	cache  *ttlcache.Cache[int64, []models.FundNoticePeriod]
	ttl    time.Duration
}

// NewCachedSource creates a CachedSource over lister.
func NewCachedSource(lister PeriodLister, ttl time.Duration) *CachedSource {
	s := &CachedSource{lister: lister, ttl: ttl}
	if ttl > 0 {
		s.cache = ttlcache.New(
			ttlcache.WithTTL[int64, []models.FundNoticePeriod](ttl),
			ttlcache.WithDisableTouchOnHit[int64, []models.FundNoticePeriod](),
		)
	}
	return s
}

// ListNoticePeriods returns the fund's periods, from cache when fresh.
func (s *CachedSource) ListNoticePeriods(ctx context.Context, fundID int64) ([]models.FundNoticePeriod, error) {
	if s.cache != nil {
		if item := s.cache.Get(fundID); item != nil {
			return item.Value(), nil
		}
	}
	periods, err := s.lister.ListNoticePeriods(ctx, fundID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(fundID, periods, ttlcache.DefaultTTL)
	}
	return periods, nil
}

// Invalidate drops a fund's cached periods.
func (s *CachedSource) Invalidate(fundID int64) {
	if s.cache != nil {
		s.cache.Delete(fundID)
	}
}

// Load builds the rule table for a fund. fundID may be nil for instances
// without a fund link, in which case only overrides apply.
func Load(ctx context.Context, src PeriodLister, fundID *int64, overrides []Override, opts ...TableOption) (*Table, error) {
	var periods []models.FundNoticePeriod
	if fundID != nil && src != nil {
		var err error
		periods, err = src.ListNoticePeriods(ctx, *fundID)
		if err != nil {
			return nil, err
		}
	}
	return NewTable(periods, overrides, opts...)
}
