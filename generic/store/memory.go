// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/workforce-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[key][]generic.Transaction
	idempotency  map[string]bool
}

type key struct {
	EntityID generic.EntityID
	Resource string
}

func keyOf(entityID generic.EntityID, resource generic.ResourceType) key {
	return key{EntityID: entityID, Resource: resource.ResourceID()}
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[key][]generic.Transaction),
		idempotency:  make(map[string]bool),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(tx)
	return nil
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkKeysLocked(txs); err != nil {
		return err
	}
	for _, tx := range txs {
		m.appendLocked(tx)
	}
	return nil
}

func (m *Memory) checkKeysLocked(txs []generic.Transaction) error {
	batch := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[tx.IdempotencyKey] || batch[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		batch[tx.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) appendLocked(tx generic.Transaction) {
	k := keyOf(tx.EntityID, tx.ResourceType)
	txs := m.transactions[k]

	// keep EffectiveAt order; equal timestamps stay in arrival order
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].EffectiveAt.After(tx.EffectiveAt)
	})

	txs = append(txs, generic.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[k] = txs

	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
}

func (m *Memory) Load(_ context.Context, entityID generic.EntityID, resource generic.ResourceType) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := keyOf(entityID, resource)
	result := make([]generic.Transaction, len(m.transactions[k]))
	copy(result, m.transactions[k])
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, entityID generic.EntityID, resource generic.ResourceType, from, to generic.TimePoint) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Transaction
	for _, tx := range m.transactions[keyOf(entityID, resource)] {
		if from.BeforeOrEqual(tx.EffectiveAt) && tx.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) LoadByEntity(_ context.Context, entityID generic.EntityID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Transaction
	for k, txs := range m.transactions {
		if k.EntityID == entityID {
			result = append(result, txs...)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EffectiveAt.Before(result[j].EffectiveAt)
	})
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	txsCopy := make(map[key][]generic.Transaction, len(tm.transactions))
	for k, v := range tm.transactions {
		txsCopy[k] = append([]generic.Transaction{}, v...)
	}
	idempCopy := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idempCopy[k] = v
	}
	return memorySnapshot{transactions: txsCopy, idempotency: idempCopy}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.transactions = s.transactions
	tm.idempotency = s.idempotency
}

type memorySnapshot struct {
	transactions map[key][]generic.Transaction
	idempotency  map[string]bool
}

// txMemoryView runs with the parent's lock already held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, tx generic.Transaction) error {
	if tx.IdempotencyKey != "" && tv.parent.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	tv.parent.appendLocked(tx)
	return nil
}

func (tv *txMemoryView) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	if err := tv.parent.checkKeysLocked(txs); err != nil {
		return err
	}
	for _, tx := range txs {
		tv.parent.appendLocked(tx)
	}
	return nil
}

func (tv *txMemoryView) Load(_ context.Context, entityID generic.EntityID, resource generic.ResourceType) ([]generic.Transaction, error) {
	return append([]generic.Transaction{}, tv.parent.transactions[keyOf(entityID, resource)]...), nil
}

func (tv *txMemoryView) LoadRange(_ context.Context, entityID generic.EntityID, resource generic.ResourceType, from, to generic.TimePoint) ([]generic.Transaction, error) {
	var result []generic.Transaction
	for _, tx := range tv.parent.transactions[keyOf(entityID, resource)] {
		if from.BeforeOrEqual(tx.EffectiveAt) && tx.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (tv *txMemoryView) LoadByEntity(_ context.Context, entityID generic.EntityID) ([]generic.Transaction, error) {
	var result []generic.Transaction
	for k, txs := range tv.parent.transactions {
		if k.EntityID == entityID {
			result = append(result, txs...)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EffectiveAt.Before(result[j].EffectiveAt)
	})
	return result, nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}

var (
	_ generic.TxStore = (*TxMemory)(nil)
	_ generic.Store   = (*txMemoryView)(nil)
)
