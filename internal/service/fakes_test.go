package service

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/models"
	"github.com/blocke-ledger/internal/types"
)

const (
	addrLower = "0xabcdef0123456789abcdef0123456789abcdef01"
	addrMixed = "0xABCDEF0123456789abcdef0123456789ABCDEF01"
	txHashA   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	txHashB   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

// Mock repositories for testing

type fakeBalanceStore struct {
	mu       sync.Mutex
	balances map[string]int64
	err      error
}

func newFakeBalanceStore() *fakeBalanceStore {
	return &fakeBalanceStore{balances: map[string]int64{}}
}

func (f *fakeBalanceStore) Get(_ context.Context, address string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[address], f.err
}

func (f *fakeBalanceStore) Set(_ context.Context, address string, balance int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] = balance
	return f.err
}

func (f *fakeBalanceStore) Deduct(_ context.Context, address string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.balances[address] <= 0 {
		return 0, apperrors.NewInsufficientBalanceError(address)
	}
	f.balances[address]--
	return f.balances[address], nil
}

func (f *fakeBalanceStore) Credit(_ context.Context, address string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] += delta
	return f.balances[address], f.err
}

type fakeTransactionStore struct {
	mu  sync.Mutex
	txs []*models.Transaction
	seq int
}

func (f *fakeTransactionStore) Append(_ context.Context, tx *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	tx.ID = fmt.Sprintf("tx-%04d", f.seq)
	tx.CreatedAt = time.Unix(int64(f.seq), 0).UTC()
	f.txs = append(f.txs, tx)
	return nil
}

func (f *fakeTransactionStore) List(_ context.Context, address string, page, limit int) ([]*models.Transaction, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matching []*models.Transaction
	for _, tx := range f.txs {
		if tx.Address == address {
			matching = append(matching, tx)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID > matching[j].ID
		}
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	start := (page - 1) * limit
	if start >= len(matching) {
		return nil, int64(len(matching)), nil
	}
	end := start + limit
	if end > len(matching) {
		end = len(matching)
	}
	return matching[start:end], int64(len(matching)), nil
}

type fakeStakingStore struct {
	mu       sync.Mutex
	accounts map[string]*models.StakingAccount
}

func newFakeStakingStore() *fakeStakingStore {
	return &fakeStakingStore{accounts: map[string]*models.StakingAccount{}}
}

func (f *fakeStakingStore) account(address string) *models.StakingAccount {
	acc, ok := f.accounts[address]
	if !ok {
		acc = &models.StakingAccount{Address: address, Stakes: []models.StakeRecord{}}
		f.accounts[address] = acc
	}
	return acc
}

func (f *fakeStakingStore) Get(_ context.Context, address string) (*models.StakingAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *f.account(address)
	copied.Stakes = append([]models.StakeRecord(nil), copied.Stakes...)
	return &copied, nil
}

func (f *fakeStakingStore) RecordStake(_ context.Context, address string, stake models.StakeRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.account(address)
	if _, exists := acc.FindStake(stake.TransactionHash); exists {
		return false, nil
	}
	acc.Stakes = append(acc.Stakes, stake)
	return true, nil
}

func (f *fakeStakingStore) MarkClaimed(_ context.Context, address, txHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.account(address)
	for i := range acc.Stakes {
		if acc.Stakes[i].TransactionHash == txHash && !acc.Stakes[i].Claimed {
			acc.Stakes[i].Claimed = true
			acc.ClaimCount++
			acc.EverClaimed = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStakingStore) MarkUnstaked(_ context.Context, address, txHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.account(address)
	for i := range acc.Stakes {
		if acc.Stakes[i].TransactionHash == txHash && !acc.Stakes[i].Unstaked {
			acc.Stakes[i].Unstaked = true
			acc.UnstakeCount++
			acc.EverUnstaked = true
			return true, nil
		}
	}
	return false, nil
}

type fakeEvent struct {
	block  uint64
	amount *big.Int
}

type fakeReader struct {
	mu         sync.Mutex
	head       uint64
	decimals   uint8
	supply     *big.Int
	events     map[types.OnChainEvent][]fakeEvent
	err        error
	gate       chan struct{}
	ranges     [][2]uint64
	headCalls  int
	decimalsN  int
	stakingHex string
}

func newFakeReader(decimals uint8) *fakeReader {
	return &fakeReader{
		decimals:   decimals,
		supply:     new(big.Int),
		events:     map[types.OnChainEvent][]fakeEvent{},
		stakingHex: "0x2222222222222222222222222222222222222222",
	}
}

func (f *fakeReader) addEvent(event types.OnChainEvent, block uint64, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event] = append(f.events[event], fakeEvent{block: block, amount: amount})
}

func (f *fakeReader) setHead(head uint64) {
	f.mu.Lock()
	f.head = head
	f.mu.Unlock()
}

func (f *fakeReader) TotalSupply(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.supply), nil
}

func (f *fakeReader) Decimals(context.Context) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decimalsN++
	return f.decimals, f.err
}

func (f *fakeReader) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls++
	return f.head, f.err
}

func (f *fakeReader) SumEventAmounts(_ context.Context, event types.OnChainEvent, from, to uint64) (*big.Int, error) {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.ranges = append(f.ranges, [2]uint64{from, to})

	sum := new(big.Int)
	for _, ev := range f.events[event] {
		if ev.block >= from && ev.block <= to {
			sum.Add(sum, ev.amount)
		}
	}
	return sum, nil
}

func (f *fakeReader) StakingContract() string {
	return f.stakingHex
}

func (f *fakeReader) scannedRanges() [][2]uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]uint64(nil), f.ranges...)
}

type recordingObserver struct {
	mu     sync.Mutex
	scans  map[string]int
	errors int
}

func (r *recordingObserver) ObserveScan(total string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scans == nil {
		r.scans = map[string]int{}
	}
	r.scans[total]++
	if err != nil {
		r.errors++
	}
}
