// Package types provides common type definitions for the BlockE ledger service.
package types

import (
	"regexp"
	"strings"
)

// TransactionType enumerates the ledger entry kinds
type TransactionType string

const (
	// TxTypeDeposit records credits bought or deposited by the wallet
	TxTypeDeposit TransactionType = "deposit"
	// TxTypeClaim records a staking reward claim
	TxTypeClaim TransactionType = "claim"
	// TxTypeStake records tokens locked in the staking contract
	TxTypeStake TransactionType = "stake"
	// TxTypeUnstake records tokens released from the staking contract
	TxTypeUnstake TransactionType = "unstake"
	// TxTypeMint records a token mint
	TxTypeMint TransactionType = "mint"
	// TxTypeWithdraw records a withdrawal
	TxTypeWithdraw TransactionType = "withdraw"
)

var validTransactionTypes = map[TransactionType]bool{
	TxTypeDeposit:  true,
	TxTypeClaim:    true,
	TxTypeStake:    true,
	TxTypeUnstake:  true,
	TxTypeMint:     true,
	TxTypeWithdraw: true,
}

// IsValid reports whether t is a known ledger entry kind
func (t TransactionType) IsValid() bool {
	return validTransactionTypes[t]
}

// OnChainEvent names the contract events the aggregator sums
type OnChainEvent string

const (
	// EventStaked is emitted by the staking contract when tokens are locked
	EventStaked OnChainEvent = "Staked"
	// EventRewardClaimed is emitted by the staking contract when rewards are paid out
	EventRewardClaimed OnChainEvent = "RewardClaimed"
)

var (
	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	txHashPattern  = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
)

// NormalizeAddress lowercases and trims a wallet address.
// Every repository key goes through this before lookup or write.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsValidAddress checks for 0x followed by 40 hex characters
func IsValidAddress(address string) bool {
	return addressPattern.MatchString(strings.TrimSpace(address))
}

// NormalizeTxHash lowercases a transaction hash and ensures the 0x prefix
func NormalizeTxHash(hash string) string {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash != "" && !strings.HasPrefix(hash, "0x") {
		hash = "0x" + hash
	}
	return hash
}

// IsValidTxHash checks for 0x followed by 64 hex characters
func IsValidTxHash(hash string) bool {
	return txHashPattern.MatchString(hash)
}
