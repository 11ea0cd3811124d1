package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/storage"
	"github.com/blocke-ledger/internal/types"
)

// tokens scales a whole-token amount to base units with 18 decimals
func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func redisBacked(t *testing.T) (*storage.CheckpointRepository, *storage.CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := storage.NewRedisCacheFromClient(client)
	return storage.NewCheckpointRepository(cache), storage.NewCacheService(cache), mr
}

func TestAggregator_TotalStakedSumsThroughDecimals(t *testing.T) {
	reader := newFakeReader(18)
	reader.setHead(100)
	reader.addEvent(types.EventStaked, 10, tokens(10))
	reader.addEvent(types.EventStaked, 20, tokens(20))
	reader.addEvent(types.EventStaked, 30, tokens(30))
	reader.addEvent(types.EventRewardClaimed, 40, big.NewInt(1500000000000000000))

	svc := NewAggregatorService(reader, nil, nil, nil, AggregatorConfig{BlockSpan: 1000})

	staked, err := svc.TotalStaked(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "60", staked)

	claimed, err := svc.TotalClaimed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.5", claimed)
}

func TestAggregator_TotalMinted(t *testing.T) {
	reader := newFakeReader(6)
	reader.supply = big.NewInt(1000500000)

	svc := NewAggregatorService(reader, nil, nil, nil, AggregatorConfig{})

	minted, err := svc.TotalMinted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000.5", minted)
}

func TestAggregator_ScansInChunks(t *testing.T) {
	reader := newFakeReader(0)
	reader.setHead(25)
	reader.addEvent(types.EventStaked, 5, big.NewInt(1))
	reader.addEvent(types.EventStaked, 15, big.NewInt(2))
	reader.addEvent(types.EventStaked, 25, big.NewInt(4))

	svc := NewAggregatorService(reader, nil, nil, nil, AggregatorConfig{StartBlock: 3, BlockSpan: 10})

	got, err := svc.TotalStaked(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7", got)
	assert.Equal(t, [][2]uint64{{3, 12}, {13, 22}, {23, 25}}, reader.scannedRanges())
}

func TestAggregator_HeadBeforeStartBlock(t *testing.T) {
	reader := newFakeReader(18)
	reader.setHead(5)

	svc := NewAggregatorService(reader, nil, nil, nil, AggregatorConfig{StartBlock: 10, BlockSpan: 10})

	got, err := svc.TotalStaked(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0", got)
	assert.Empty(t, reader.scannedRanges())
}

func TestAggregator_CheckpointOnlyScansNewBlocks(t *testing.T) {
	checkpoints, _, _ := redisBacked(t)
	reader := newFakeReader(18)
	reader.setHead(50)
	reader.addEvent(types.EventStaked, 10, tokens(10))
	reader.addEvent(types.EventStaked, 20, tokens(20))
	reader.addEvent(types.EventStaked, 30, tokens(30))

	svc := NewAggregatorService(reader, checkpoints, nil, nil, AggregatorConfig{BlockSpan: 1000})
	ctx := context.Background()

	got, err := svc.TotalStaked(ctx)
	require.NoError(t, err)
	assert.Equal(t, "60", got)

	cp, err := checkpoints.Get(ctx, reader.StakingContract(), string(types.EventStaked))
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, uint64(50), cp.LastBlock)
	assert.Equal(t, tokens(60).String(), cp.Total)

	reader.addEvent(types.EventStaked, 60, tokens(5))
	reader.setHead(70)

	got, err = svc.TotalStaked(ctx)
	require.NoError(t, err)
	assert.Equal(t, "65", got)
	assert.Equal(t, [][2]uint64{{0, 50}, {51, 70}}, reader.scannedRanges())
}

func TestAggregator_ConfirmationsKeepTailOutOfCheckpoint(t *testing.T) {
	checkpoints, _, _ := redisBacked(t)
	reader := newFakeReader(0)
	reader.setHead(100)
	reader.addEvent(types.EventRewardClaimed, 50, big.NewInt(3))
	reader.addEvent(types.EventRewardClaimed, 95, big.NewInt(4))

	svc := NewAggregatorService(reader, checkpoints, nil, nil, AggregatorConfig{BlockSpan: 1000, Confirmations: 10})
	ctx := context.Background()

	got, err := svc.TotalClaimed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7", got)

	cp, err := checkpoints.Get(ctx, reader.StakingContract(), string(types.EventRewardClaimed))
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, uint64(90), cp.LastBlock)
	assert.Equal(t, "3", cp.Total)

	// The tail is rescanned on the next call.
	got, err = svc.TotalClaimed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7", got)
	assert.Equal(t, [][2]uint64{{0, 90}, {91, 100}, {91, 100}}, reader.scannedRanges())
}

func TestAggregator_RedisCache(t *testing.T) {
	checkpoints, cache, mr := redisBacked(t)
	reader := newFakeReader(18)
	reader.setHead(10)
	reader.addEvent(types.EventStaked, 1, tokens(2))

	svc := NewAggregatorService(reader, checkpoints, cache, nil, AggregatorConfig{BlockSpan: 100, CacheTTL: 20 * time.Second})
	ctx := context.Background()

	_, err := svc.TotalStaked(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("total:staked"))

	reader.addEvent(types.EventStaked, 11, tokens(3))
	reader.setHead(12)
	got, err := svc.TotalStaked(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", got, "served from cache")
	assert.Equal(t, 1, reader.headCalls)

	mr.FastForward(21 * time.Second)
	got, err = svc.TotalStaked(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5", got)
}

func TestAggregator_LocalCacheExpires(t *testing.T) {
	reader := newFakeReader(0)
	reader.supply = big.NewInt(5)

	svc := NewAggregatorService(reader, nil, nil, nil, AggregatorConfig{CacheTTL: time.Minute})
	now := time.Unix(1700000000, 0)
	svc.now = func() time.Time { return now }

	got, err := svc.TotalMinted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5", got)

	reader.supply = big.NewInt(9)
	got, _ = svc.TotalMinted(context.Background())
	assert.Equal(t, "5", got)

	now = now.Add(2 * time.Minute)
	got, _ = svc.TotalMinted(context.Background())
	assert.Equal(t, "9", got)
}

func TestAggregator_ConcurrentCallsShareOneScan(t *testing.T) {
	reader := newFakeReader(18)
	reader.setHead(10)
	reader.addEvent(types.EventStaked, 3, tokens(4))
	reader.gate = make(chan struct{})

	observer := &recordingObserver{}
	svc := NewAggregatorService(reader, nil, nil, observer, AggregatorConfig{BlockSpan: 100, CacheTTL: time.Minute})

	const callers = 12
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.TotalStaked(context.Background())
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(reader.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "4", results[i])
	}
	assert.Equal(t, 1, reader.headCalls)
	assert.Equal(t, 1, observer.scans[TotalStaked])
}

func TestAggregator_CancelledLeaderStillCachesSharedScan(t *testing.T) {
	_, cache, mr := redisBacked(t)
	reader := newFakeReader(18)
	reader.setHead(10)
	reader.addEvent(types.EventStaked, 3, tokens(2))
	reader.gate = make(chan struct{})

	svc := NewAggregatorService(reader, nil, cache, nil, AggregatorConfig{BlockSpan: 100, CacheTTL: time.Minute})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.TotalStaked(leaderCtx)
		leaderErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	followerResult := make(chan string, 1)
	followerErr := make(chan error, 1)
	go func() {
		v, err := svc.TotalStaked(context.Background())
		followerResult <- v
		followerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(reader.gate)
	require.NoError(t, <-followerErr)
	assert.Equal(t, "2", <-followerResult)
	assert.True(t, mr.Exists("total:staked"))
	assert.Equal(t, 1, reader.headCalls)
}

func TestAggregator_RPCFailureIsUpstreamError(t *testing.T) {
	reader := newFakeReader(18)
	reader.err = errors.New("connection refused")

	observer := &recordingObserver{}
	svc := NewAggregatorService(reader, nil, nil, observer, AggregatorConfig{CacheTTL: time.Minute})

	_, err := svc.TotalMinted(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryProvider))
	assert.Equal(t, 500, apperrors.Categorize(err).StatusCode)
	assert.Equal(t, 1, observer.errors)

	// Failures are not cached.
	reader.mu.Lock()
	reader.err = nil
	reader.mu.Unlock()
	_, err = svc.TotalMinted(context.Background())
	assert.NoError(t, err)
}

func TestAggregator_DecimalsReadOnce(t *testing.T) {
	reader := newFakeReader(18)
	reader.setHead(1)
	svc := NewAggregatorService(reader, nil, nil, nil, AggregatorConfig{})

	_, err := svc.TotalStaked(context.Background())
	require.NoError(t, err)
	_, err = svc.TotalClaimed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reader.decimalsN)
}

func TestFormatUnitsProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("sum of scaled amounts formats to the sum of the whole amounts", prop.ForAll(
		func(amounts []int64, decimals uint8) bool {
			scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
			total := new(big.Int)
			want := decimal.Zero
			for _, a := range amounts {
				total.Add(total, new(big.Int).Mul(big.NewInt(a), scale))
				want = want.Add(decimal.NewFromInt(a))
			}
			return FormatUnits(total, decimals) == want.String()
		},
		gen.SliceOf(gen.Int64Range(0, 1_000_000)),
		gen.UInt8Range(0, 30),
	))

	properties.TestingRun(t)
}
