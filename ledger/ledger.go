// Package ledger describes the host chain currency operations bonds are
// taken and settled with, and provides an in-memory implementation.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// AccountID identifies a holder of funds on the host chain.
type AccountID string

// LockID names one lock on an account. Locks with different IDs add up.
type LockID string

var (
	// ErrInsufficientBalance is returned when the usable balance cannot cover
	// a lock or a transfer.
	ErrInsufficientBalance = errors.New("insufficient usable balance")
)

//go:generate mockery --case underscore --name Ledger

// Ledger is the currency collaborator of the relay and the relayer game.
type Ledger interface {
	// Lock adds amount to the lock id of account.
	Lock(account AccountID, id LockID, amount uint64) error
	// SetLock replaces the lock id of account. Zero removes it.
	SetLock(account AccountID, id LockID, amount uint64) error
	// Slash burns up to amount from account and returns what was burned.
	Slash(account AccountID, amount uint64) (uint64, error)
	// Transfer moves amount of usable balance from one account to another.
	Transfer(from, to AccountID, amount uint64) error
	// Repatriate moves up to amount of free balance from one account to
	// another regardless of locks and returns what was moved.
	Repatriate(from, to AccountID, amount uint64) (uint64, error)
	// UsableBalance is the free balance minus all locks.
	UsableBalance(account AccountID) uint64
}

var _ Ledger = (*Memory)(nil)

// Memory is a Ledger kept in memory. It is safe for concurrent use.
type Memory struct {
	mtx    sync.Mutex
	free   map[AccountID]uint64
	locks  map[AccountID]map[LockID]uint64
	burned uint64
}

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		free:  make(map[AccountID]uint64),
		locks: make(map[AccountID]map[LockID]uint64),
	}
}

// Deposit credits amount to account.
func (m *Memory) Deposit(account AccountID, amount uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.free[account] += amount
}

func (m *Memory) Lock(account AccountID, id LockID, amount uint64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.usable(account) < amount {
		return fmt.Errorf("%w: %s cannot lock %d", ErrInsufficientBalance, account, amount)
	}
	m.setLock(account, id, m.locks[account][id]+amount)
	return nil
}

func (m *Memory) SetLock(account AccountID, id LockID, amount uint64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	current := m.locks[account][id]
	if amount > current && m.usable(account) < amount-current {
		return fmt.Errorf("%w: %s cannot lock %d", ErrInsufficientBalance, account, amount)
	}
	m.setLock(account, id, amount)
	return nil
}

func (m *Memory) Slash(account AccountID, amount uint64) (uint64, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	burned := amount
	if free := m.free[account]; free < burned {
		burned = free
	}
	m.free[account] -= burned
	m.burned += burned
	return burned, nil
}

func (m *Memory) Transfer(from, to AccountID, amount uint64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.usable(from) < amount {
		return fmt.Errorf("%w: %s cannot transfer %d", ErrInsufficientBalance, from, amount)
	}
	m.free[from] -= amount
	m.free[to] += amount
	return nil
}

func (m *Memory) Repatriate(from, to AccountID, amount uint64) (uint64, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	moved := amount
	if free := m.free[from]; free < moved {
		moved = free
	}
	m.free[from] -= moved
	m.free[to] += moved
	return moved, nil
}

func (m *Memory) UsableBalance(account AccountID) uint64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.usable(account)
}

// FreeBalance is the balance of account including locked funds.
func (m *Memory) FreeBalance(account AccountID) uint64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.free[account]
}

// Locked returns the lock id of account.
func (m *Memory) Locked(account AccountID, id LockID) uint64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.locks[account][id]
}

// Burned is the total amount slashed so far.
func (m *Memory) Burned() uint64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.burned
}

// Accounts lists every account that ever held funds or locks, sorted.
func (m *Memory) Accounts() []AccountID {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	seen := make(map[AccountID]struct{}, len(m.free))
	for a := range m.free {
		seen[a] = struct{}{}
	}
	for a := range m.locks {
		seen[a] = struct{}{}
	}
	out := make([]AccountID, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Memory) usable(account AccountID) uint64 {
	var locked uint64
	for _, v := range m.locks[account] {
		locked += v
	}
	free := m.free[account]
	if locked >= free {
		return 0
	}
	return free - locked
}

func (m *Memory) setLock(account AccountID, id LockID, amount uint64) {
	if amount == 0 {
		delete(m.locks[account], id)
		if len(m.locks[account]) == 0 {
			delete(m.locks, account)
		}
		return
	}
	if m.locks[account] == nil {
		m.locks[account] = make(map[LockID]uint64)
	}
	m.locks[account][id] = amount
}
