package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/domain"
)

// SummaryUseCase answers read-only aggregate queries. Results are served from
// the cache when one is configured.
//
// Cached summaries are keyed by a per-owner generation that every committed
// mutation replaces. A summary computed from totals read before a commit is
// stored under the generation it started with, which no later read uses.
type SummaryUseCase struct {
	recordRepo RecordRepository
	entryRepo  EntryRepository
	cache      Cache
	ttl        time.Duration
}

// NewSummaryUseCase creates a new SummaryUseCase. cache may be nil.
func NewSummaryUseCase(recordRepo RecordRepository, entryRepo EntryRepository, cache Cache, ttl time.Duration) *SummaryUseCase {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}

	return &SummaryUseCase{
		recordRepo: recordRepo,
		entryRepo:  entryRepo,
		cache:      cache,
		ttl:        ttl,
	}
}

// RecordSummary returns the totals of one record's ledger.
func (uc *SummaryUseCase) RecordSummary(ctx context.Context, ownerID, recordID int64) (*domain.RecordSummary, error) {
	gen, cacheable := uc.generation(ctx, ownerID)
	key := recordSummaryKey(ownerID, gen, recordID)

	var cached domain.RecordSummary
	if cacheable && uc.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	record, err := uc.recordRepo.GetByID(ctx, ownerID, recordID)
	if err != nil {
		return nil, err
	}

	totals, err := uc.entryRepo.Totals(ctx, recordID)
	if err != nil {
		return nil, err
	}

	summary := &domain.RecordSummary{
		RecordID:     record.ID,
		Code:         record.Code,
		Status:       domain.StatusFor(totals.CurrentBalance),
		RecordTotals: totals,
	}

	if cacheable {
		uc.toCache(ctx, key, summary)
	}

	return summary, nil
}

// OwnerSummary returns one summary row per record of the owner.
func (uc *SummaryUseCase) OwnerSummary(ctx context.Context, ownerID int64) ([]*domain.RecordSummary, error) {
	gen, cacheable := uc.generation(ctx, ownerID)
	key := ownerSummaryKey(ownerID, gen)

	var cached []*domain.RecordSummary
	if cacheable && uc.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	summaries, err := uc.entryRepo.SummaryByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if summaries == nil {
		summaries = []*domain.RecordSummary{}
	}

	if cacheable {
		uc.toCache(ctx, key, summaries)
	}

	return summaries, nil
}

// generation returns the owner's current summary generation. The cache is
// bypassed when the generation cannot be read.
func (uc *SummaryUseCase) generation(ctx context.Context, ownerID int64) (string, bool) {
	if uc.cache == nil {
		return "", false
	}

	data, err := uc.cache.Get(ctx, summaryGenerationKey(ownerID))
	switch {
	case errors.Is(err, ErrCacheMiss):
		return initialGeneration, true
	case err != nil:
		zerolog.Ctx(ctx).Warn().Err(err).Int64("owner_id", ownerID).Msg("summary generation read failed")
		return "", false
	}

	return string(data), true
}

func (uc *SummaryUseCase) fromCache(ctx context.Context, key string, dst any) bool {
	if uc.cache == nil {
		return false
	}

	data, err := uc.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("summary cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("summary cache entry is corrupt")
		return false
	}

	return true
}

func (uc *SummaryUseCase) toCache(ctx context.Context, key string, v any) {
	if uc.cache == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	if err := uc.cache.Set(ctx, key, data, uc.ttl); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("summary cache write failed")
	}
}

const initialGeneration = "0"

func summaryGenerationKey(ownerID int64) string {
	return fmt.Sprintf("summary:%d:gen", ownerID)
}

func recordSummaryKey(ownerID int64, gen string, recordID int64) string {
	return fmt.Sprintf("summary:%d:%s:record:%d", ownerID, gen, recordID)
}

func ownerSummaryKey(ownerID int64, gen string) string {
	return fmt.Sprintf("summary:%d:%s:owner", ownerID, gen)
}

// invalidateSummaries retires every cached summary of the owner by starting a
// new generation, then drops the previous generation's owner summary and the
// record summary of recordID (when positive). Other entries of older
// generations expire with their TTL. A failure only delays freshness until
// the TTL expires.
func invalidateSummaries(ctx context.Context, cache Cache, logger *zerolog.Logger, ownerID, recordID int64) {
	if cache == nil {
		return
	}

	genKey := summaryGenerationKey(ownerID)

	prev := initialGeneration
	data, err := cache.Get(ctx, genKey)
	switch {
	case err == nil:
		prev = string(data)
	case !errors.Is(err, ErrCacheMiss):
		prev = ""
	}

	if err := cache.Set(ctx, genKey, []byte(ulid.Make().String()), 0); err != nil {
		logger.Warn().Err(err).Str("key", genKey).Msg("summary cache invalidation failed")
		return
	}

	if prev == "" {
		return
	}

	keys := []string{ownerSummaryKey(ownerID, prev)}
	if recordID > 0 {
		keys = append(keys, recordSummaryKey(ownerID, prev, recordID))
	}

	if err := cache.Delete(ctx, keys...); err != nil {
		logger.Warn().Err(err).Strs("keys", keys).Msg("stale summary cleanup failed")
	}
}
