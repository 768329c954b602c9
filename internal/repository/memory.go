package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/holderrewards/dashboard/internal/models"
)

// MemoryDB is an in-memory models.Repository. It backs demo deployments and tests.
type MemoryDB struct {
	mu      sync.RWMutex
	nextID  int64
	locks   map[string]map[string]*models.LockEntry // wallet -> token id
	history []*models.ClaimHistoryEntry
	payouts []*models.PayoutConfig
	users   map[string]*models.User
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		locks: make(map[string]map[string]*models.LockEntry),
		users: make(map[string]*models.User),
	}
}

func (m *MemoryDB) Close() error { return nil }

func (m *MemoryDB) GetLockEntries(_ context.Context, walletAddress string) ([]*models.LockEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*models.LockEntry, 0, len(m.locks[walletAddress]))
	for _, e := range m.locks[walletAddress] {
		c := *e
		entries = append(entries, &c)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (m *MemoryDB) UpsertLockEntry(_ context.Context, entry *models.LockEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byToken, ok := m.locks[entry.WalletAddress]
	if !ok {
		byToken = make(map[string]*models.LockEntry)
		m.locks[entry.WalletAddress] = byToken
	}
	if existing, ok := byToken[entry.TokenID]; ok {
		existing.UnlockDate = entry.UnlockDate
		existing.TransactionHash = entry.TransactionHash
		entry.ID = existing.ID
		return nil
	}

	m.nextID++
	entry.ID = m.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	c := *entry
	byToken[entry.TokenID] = &c
	return nil
}

func (m *MemoryDB) AddClaimHistory(_ context.Context, entry *models.ClaimHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.history {
		if e.TransactionHash == entry.TransactionHash {
			return models.ErrClaimAlreadyRecorded
		}
	}
	c := *entry
	c.TokenIDs = append([]string(nil), entry.TokenIDs...)
	m.history = append(m.history, &c)
	return nil
}

func (m *MemoryDB) GetClaimHistoryByHash(_ context.Context, transactionHash string) (*models.ClaimHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.history {
		if e.TransactionHash == transactionHash {
			c := *e
			c.TokenIDs = append([]string(nil), e.TokenIDs...)
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemoryDB) GetClaimHistory(_ context.Context, walletAddress string, limit int) ([]*models.ClaimHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []*models.ClaimHistoryEntry
	for _, e := range m.history {
		if e.WalletAddress == walletAddress {
			c := *e
			entries = append(entries, &c)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *MemoryDB) GetLatestPayoutConfig(_ context.Context) (*models.PayoutConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.PayoutConfig
	for _, p := range m.payouts {
		if latest == nil || !p.CreatedAt.Before(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	c := *latest
	return &c, nil
}

func (m *MemoryDB) AddPayoutConfig(_ context.Context, config *models.PayoutConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	config.ID = m.nextID
	if config.CreatedAt.IsZero() {
		config.CreatedAt = time.Now()
	}
	c := *config
	m.payouts = append(m.payouts, &c)
	return nil
}

func (m *MemoryDB) GetUser(_ context.Context, address string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[address]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *MemoryDB) UpsertUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.users[user.Address]; ok {
		existing.Email = user.Email
		existing.EmailVerified = user.EmailVerified
		existing.UpdatedAt = now
		return nil
	}
	c := *user
	c.CreatedAt = now
	c.UpdatedAt = now
	m.users[user.Address] = &c
	return nil
}
