package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// MemoryStore backs the in-memory repositories. A transaction started by
// MockTransactionManager snapshots it and restores the snapshot on rollback.
type MemoryStore struct {
	mu           sync.RWMutex
	records      map[int64]*domain.Record
	entries      map[int64]*domain.Entry
	nextRecordID int64
	nextEntryID  int64

	// LockLog lists every row lock taken, e.g. "record:1" or "entry:4".
	LockLog []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]*domain.Record),
		entries: make(map[int64]*domain.Entry),
	}
}

type memorySnapshot struct {
	records      map[int64]*domain.Record
	entries      map[int64]*domain.Entry
	nextRecordID int64
	nextEntryID  int64
}

func (s *MemoryStore) snapshot() memorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := memorySnapshot{
		records:      make(map[int64]*domain.Record, len(s.records)),
		entries:      make(map[int64]*domain.Entry, len(s.entries)),
		nextRecordID: s.nextRecordID,
		nextEntryID:  s.nextEntryID,
	}
	for id, r := range s.records {
		c := *r
		snap.records[id] = &c
	}
	for id, e := range s.entries {
		snap.entries[id] = e.Clone()
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = snap.records
	s.entries = snap.entries
	s.nextRecordID = snap.nextRecordID
	s.nextEntryID = snap.nextEntryID
}

// SeedRecord stores a record directly and returns it.
func (s *MemoryStore) SeedRecord(ownerID int64, code string) *domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRecordID++
	r := &domain.Record{
		ID:             s.nextRecordID,
		OwnerID:        ownerID,
		Code:           code,
		CurrentBalance: decimal.Zero,
		Status:         domain.StatusDepleted,
	}
	s.records[r.ID] = r

	c := *r
	return &c
}

// SeedEntry stores an entry as-is, balance included.
func (s *MemoryStore) SeedEntry(e *domain.Entry) *domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEntryID++
	c := e.Clone()
	c.ID = s.nextEntryID
	s.entries[c.ID] = c
	return c.Clone()
}

// Record returns a copy of the stored record, or nil.
func (s *MemoryStore) Record(id int64) *domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil
	}
	c := *r
	return &c
}

// Entries returns copies of the record's entries in canonical order.
func (s *MemoryStore) Entries(recordID int64) []*domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesLocked(recordID)
}

func (s *MemoryStore) entriesLocked(recordID int64) []*domain.Entry {
	var out []*domain.Entry
	for _, e := range s.entries {
		if e.RecordID == recordID {
			out = append(out, e.Clone())
		}
	}
	domain.SortCanonical(out)
	return out
}

func (s *MemoryStore) ownedRecordLocked(ownerID, id int64) (*domain.Record, error) {
	r, ok := s.records[id]
	if !ok || r.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: record %d", domain.ErrNotFound, id)
	}
	return r, nil
}

func (s *MemoryStore) ownedEntryLocked(ownerID, id int64) (*domain.Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: entry %d", domain.ErrNotFound, id)
	}
	if _, err := s.ownedRecordLocked(ownerID, e.RecordID); err != nil {
		return nil, fmt.Errorf("%w: entry %d", domain.ErrNotFound, id)
	}
	return e.Clone(), nil
}

func (s *MemoryStore) latestLocked(recordID int64) decimal.Decimal {
	entries := s.entriesLocked(recordID)
	if len(entries) == 0 {
		return decimal.Zero
	}
	return entries[len(entries)-1].Balance
}

// MockRecordRepository is an in-memory RecordRepository.
type MockRecordRepository struct {
	store *MemoryStore

	CreateFunc           func(ctx context.Context, tx usecase.Transaction, record *domain.Record) error
	GetByIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, ownerID, id int64) (*domain.Record, error)
	UpdateAggregateFunc  func(ctx context.Context, tx usecase.Transaction, id int64, balance decimal.Decimal, status domain.RecordStatus, updatedAt time.Time) error
	DeleteFunc           func(ctx context.Context, tx usecase.Transaction, id int64) error
}

func NewMockRecordRepository(store *MemoryStore) *MockRecordRepository {
	return &MockRecordRepository{store: store}
}

func (m *MockRecordRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.Record) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, record)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, r := range m.store.records {
		if r.OwnerID == record.OwnerID && r.Code == record.Code {
			return fmt.Errorf("%w: record code %q already exists", domain.ErrValidation, record.Code)
		}
	}
	m.store.nextRecordID++
	record.ID = m.store.nextRecordID
	c := *record
	m.store.records[record.ID] = &c
	return nil
}

func (m *MockRecordRepository) Exists(ctx context.Context, ownerID, id int64) (bool, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	_, err := m.store.ownedRecordLocked(ownerID, id)
	return err == nil, nil
}

func (m *MockRecordRepository) GetByID(ctx context.Context, ownerID, id int64) (*domain.Record, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	r, err := m.store.ownedRecordLocked(ownerID, id)
	if err != nil {
		return nil, err
	}
	c := *r
	return &c, nil
}

func (m *MockRecordRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, ownerID, id int64) (*domain.Record, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, ownerID, id)
	}
	r, err := m.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	m.store.mu.Lock()
	m.store.LockLog = append(m.store.LockLog, fmt.Sprintf("record:%d", id))
	m.store.mu.Unlock()
	return r, nil
}

func (m *MockRecordRepository) List(ctx context.Context, ownerID int64, limit, offset int) ([]*domain.Record, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	var out []*domain.Record
	for _, r := range m.store.records {
		if r.OwnerID == ownerID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []*domain.Record{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRecordRepository) Count(ctx context.Context, ownerID int64) (int64, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	var n int64
	for _, r := range m.store.records {
		if r.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *MockRecordRepository) UpdateAggregate(ctx context.Context, tx usecase.Transaction, id int64, balance decimal.Decimal, status domain.RecordStatus, updatedAt time.Time) error {
	if m.UpdateAggregateFunc != nil {
		return m.UpdateAggregateFunc(ctx, tx, id, balance, status, updatedAt)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	r, ok := m.store.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.CurrentBalance = balance
	r.Status = status
	r.UpdatedAt = updatedAt
	return nil
}

func (m *MockRecordRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	delete(m.store.records, id)
	for eid, e := range m.store.entries {
		if e.RecordID == id {
			delete(m.store.entries, eid)
		}
	}
	return nil
}

// MockEntryRepository is an in-memory EntryRepository.
type MockEntryRepository struct {
	store *MemoryStore

	CreateFunc        func(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error
	LockFromFunc      func(ctx context.Context, tx usecase.Transaction, recordID int64, date time.Time) ([]*domain.Entry, error)
	UpdateFunc        func(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error
	UpdateBalanceFunc func(ctx context.Context, tx usecase.Transaction, id int64, balance decimal.Decimal, updatedAt time.Time) error
	DeleteFunc        func(ctx context.Context, tx usecase.Transaction, id int64) error
	TotalsFunc        func(ctx context.Context, recordID int64) (domain.RecordTotals, error)
}

func NewMockEntryRepository(store *MemoryStore) *MockEntryRepository {
	return &MockEntryRepository{store: store}
}

func (m *MockEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, entry)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.nextEntryID++
	entry.ID = m.store.nextEntryID
	m.store.entries[entry.ID] = entry.Clone()
	return nil
}

func (m *MockEntryRepository) GetByID(ctx context.Context, ownerID, id int64) (*domain.Entry, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.ownedEntryLocked(ownerID, id)
}

func (m *MockEntryRepository) GetByIDTx(ctx context.Context, tx usecase.Transaction, ownerID, id int64) (*domain.Entry, error) {
	return m.GetByID(ctx, ownerID, id)
}

func (m *MockEntryRepository) ListByRecord(ctx context.Context, recordID int64, limit, offset int) ([]*domain.Entry, error) {
	out := m.store.Entries(recordID)
	domain.SortRecentFirst(out)
	if offset >= len(out) {
		return []*domain.Entry{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockEntryRepository) ListCanonical(ctx context.Context, recordID int64) ([]*domain.Entry, error) {
	return m.store.Entries(recordID), nil
}

func (m *MockEntryRepository) CountByRecord(ctx context.Context, recordID int64) (int64, error) {
	return int64(len(m.store.Entries(recordID))), nil
}

func (m *MockEntryRepository) CountByRecordTx(ctx context.Context, tx usecase.Transaction, recordID int64) (int64, error) {
	return m.CountByRecord(ctx, recordID)
}

func (m *MockEntryRepository) LatestBalance(ctx context.Context, recordID int64) (decimal.Decimal, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.latestLocked(recordID), nil
}

func (m *MockEntryRepository) LatestBalanceTx(ctx context.Context, tx usecase.Transaction, recordID int64) (decimal.Decimal, error) {
	return m.LatestBalance(ctx, recordID)
}

func (m *MockEntryRepository) BalanceBefore(ctx context.Context, tx usecase.Transaction, recordID int64, date time.Time) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, e := range m.store.Entries(recordID) {
		if !e.EntryDate.Before(date) {
			break
		}
		balance = e.Balance
	}
	return balance, nil
}

func (m *MockEntryRepository) LockFrom(ctx context.Context, tx usecase.Transaction, recordID int64, date time.Time) ([]*domain.Entry, error) {
	if m.LockFromFunc != nil {
		return m.LockFromFunc(ctx, tx, recordID, date)
	}
	var out []*domain.Entry
	for _, e := range m.store.Entries(recordID) {
		if !e.EntryDate.Before(date) {
			out = append(out, e)
		}
	}
	domain.SortByID(out)

	m.store.mu.Lock()
	for _, e := range out {
		m.store.LockLog = append(m.store.LockLog, fmt.Sprintf("entry:%d", e.ID))
	}
	m.store.mu.Unlock()

	return out, nil
}

func (m *MockEntryRepository) Update(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, entry)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	existing, ok := m.store.entries[entry.ID]
	if !ok {
		return domain.ErrNotFound
	}
	existing.EntryDate = entry.EntryDate
	existing.QuantityIn = entry.QuantityIn
	existing.QuantityOut = entry.QuantityOut
	existing.Remarks = entry.Remarks
	existing.Balance = entry.Balance
	existing.UpdatedAt = entry.UpdatedAt
	return nil
}

func (m *MockEntryRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id int64, balance decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, tx, id, balance, updatedAt)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	e, ok := m.store.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Balance = balance
	e.UpdatedAt = updatedAt
	return nil
}

func (m *MockEntryRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	delete(m.store.entries, id)
	return nil
}

func (m *MockEntryRepository) Totals(ctx context.Context, recordID int64) (domain.RecordTotals, error) {
	if m.TotalsFunc != nil {
		return m.TotalsFunc(ctx, recordID)
	}
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.totalsLocked(recordID), nil
}

func (m *MockEntryRepository) SummaryByOwner(ctx context.Context, ownerID int64) ([]*domain.RecordSummary, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	var out []*domain.RecordSummary
	for _, r := range m.store.records {
		if r.OwnerID != ownerID {
			continue
		}
		totals := m.store.totalsLocked(r.ID)
		out = append(out, &domain.RecordSummary{
			RecordID:     r.ID,
			Code:         r.Code,
			Status:       domain.StatusFor(totals.CurrentBalance),
			RecordTotals: totals,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

func (s *MemoryStore) totalsLocked(recordID int64) domain.RecordTotals {
	totals := domain.RecordTotals{
		TotalIn:        decimal.Zero,
		TotalOut:       decimal.Zero,
		CurrentBalance: s.latestLocked(recordID),
	}
	for _, e := range s.entries {
		if e.RecordID == recordID {
			totals.TotalIn = totals.TotalIn.Add(e.QuantityIn)
			totals.TotalOut = totals.TotalOut.Add(e.QuantityOut)
			totals.EntryCount++
		}
	}
	return totals
}

// MockTransactionManager is a mock implementation of TransactionManager.
// With a store attached, rollback restores the store to its state at Begin.
type MockTransactionManager struct {
	store *MemoryStore

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
	Begun     int
}

func NewMockTransactionManager(store *MemoryStore) *MockTransactionManager {
	return &MockTransactionManager{store: store}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.Begun++
	tx := &MockTransaction{}
	if m.store != nil {
		snap := m.store.snapshot()
		tx.onRollback = func() { m.store.restore(snap) }
	}
	return tx, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	onRollback func()
	done       bool
	Committed  bool
	RolledBack bool
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		if err := m.CommitFunc(ctx); err != nil {
			return err
		}
	}
	m.done = true
	m.Committed = true
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	if m.done {
		return nil
	}
	m.done = true
	m.RolledBack = true
	if m.onRollback != nil {
		m.onRollback()
	}
	return nil
}

// MockCache is an in-memory usecase.Cache.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	DeleteFunc func(ctx context.Context, keys ...string) error
	Hits       int
}

func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, usecase.ErrCacheMiss
	}
	m.Hits++
	return v, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, keys...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Has reports whether key is cached.
func (m *MockCache) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	m.data[key] = response
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MockMetrics records mutation telemetry for assertions.
type MockMetrics struct {
	mu       sync.Mutex
	States   map[string]int
	Failures map[string]int
	Cascaded map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		States:   make(map[string]int),
		Failures: make(map[string]int),
		Cascaded: make(map[string]int),
	}
}

func (m *MockMetrics) ObserveMutation(op string, state domain.MutationState, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.States[op+"/"+string(state)]++
}

func (m *MockMetrics) IncMutationFailure(op string, stage domain.MutationState, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures[op+"/"+string(stage)+"/"+kind]++
}

func (m *MockMetrics) ObserveCascade(op string, rewritten int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cascaded[op] += rewritten
}
