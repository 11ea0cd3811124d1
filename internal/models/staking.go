package models

import "time"

// StakeRecord is one deposit-for-yield entry tied to an on-chain transaction.
// TransactionHash is unique within the owning StakingAccount.
type StakeRecord struct {
	TransactionHash string  `json:"transactionHash" bson:"transactionHash"`
	Amount          string  `json:"amount" bson:"amount"`
	PeriodIndex     int     `json:"periodIndex" bson:"periodIndex"`
	StartTime       int64   `json:"startTime" bson:"startTime"` // unix seconds
	EndTime         int64   `json:"endTime" bson:"endTime"`
	APR             float64 `json:"apr" bson:"apr"`
	ExpectedBE      string  `json:"expectedBE" bson:"expectedBE"`
	Claimed         bool    `json:"claimed" bson:"claimed"`
	Unstaked        bool    `json:"unstaked" bson:"unstaked"`
}

// StakingAccount is the per-address staking document
type StakingAccount struct {
	Address      string        `json:"address" bson:"address"`
	Stakes       []StakeRecord `json:"stakes" bson:"stakes"`
	ClaimCount   int64         `json:"claimCount" bson:"claimCount"`
	UnstakeCount int64         `json:"unstakeCount" bson:"unstakeCount"`
	EverClaimed  bool          `json:"everClaimed" bson:"everClaimed"`
	EverUnstaked bool          `json:"everUnstaked" bson:"everUnstaked"`
	UpdatedAt    time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// FindStake returns the stake with the given transaction hash, if any
func (a *StakingAccount) FindStake(txHash string) (*StakeRecord, bool) {
	for i := range a.Stakes {
		if a.Stakes[i].TransactionHash == txHash {
			return &a.Stakes[i], true
		}
	}
	return nil, false
}
