// Package main prints the on-chain minted, staked and claimed totals.
// It uses the server's configuration and scan checkpoints, so a run here
// also warms the checkpoints the API reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/blocke-ledger/internal/adapter"
	"github.com/blocke-ledger/internal/config"
	"github.com/blocke-ledger/internal/service"
	"github.com/blocke-ledger/internal/storage"
	"github.com/blocke-ledger/internal/types"
)

func main() {
	which := flag.String("total", "all", "Total to print: minted, staked, claimed, all")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall timeout")
	noCheckpoints := flag.Bool("no-checkpoints", false, "Scan from the start block without reading or writing checkpoints")
	reset := flag.Bool("reset", false, "Delete saved checkpoints and cached totals before scanning (needed after changing SCAN_START_BLOCK)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Chain.Enabled() {
		fmt.Println("RPC_URL and TOKEN_CONTRACT_ADDRESS must be set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	chain, err := adapter.NewEthereumAdapter(ctx, &cfg.Chain)
	if err != nil {
		fmt.Printf("Error connecting to RPC: %v\n", err)
		os.Exit(1)
	}
	defer chain.Close()

	var checkpoints service.CheckpointStore
	if cfg.Database.Redis.Enabled && !*noCheckpoints {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			fmt.Printf("Warning: Redis unavailable, scanning without checkpoints: %v\n", err)
		} else {
			defer redis.Close()
			repo := storage.NewCheckpointRepository(redis)
			checkpoints = repo

			if *reset {
				err := storage.ResetScans(ctx, repo, storage.NewCacheService(redis), chain.StakingContract(),
					string(types.EventStaked), string(types.EventRewardClaimed))
				if err != nil {
					fmt.Printf("Error resetting scan state: %v\n", err)
					os.Exit(1)
				}
				fmt.Println("Checkpoints and cached totals cleared")
			}
		}
	} else if *reset {
		fmt.Println("Warning: -reset has no effect without Redis checkpoints")
	}

	agg := service.NewAggregatorService(chain, checkpoints, nil, nil, service.AggregatorConfig{
		StartBlock:    cfg.Chain.StartBlock,
		BlockSpan:     cfg.Chain.BlockSpan,
		Confirmations: cfg.Chain.Confirmations,
	})

	totals := []struct {
		name string
		fn   func(context.Context) (string, error)
	}{
		{service.TotalMinted, agg.TotalMinted},
		{service.TotalStaked, agg.TotalStaked},
		{service.TotalClaimed, agg.TotalClaimed},
	}

	failed := false
	for _, t := range totals {
		if *which != "all" && *which != t.name {
			continue
		}
		start := time.Now()
		value, err := t.fn(ctx)
		if err != nil {
			fmt.Printf("%-8s error: %v\n", t.name, err)
			failed = true
			continue
		}
		fmt.Printf("%-8s %s (%s)\n", t.name, value, time.Since(start).Round(time.Millisecond))
	}

	if failed {
		os.Exit(1)
	}
}
