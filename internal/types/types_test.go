package types

import (
	"testing"
)

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"lowercase", "0x1234567890abcdef1234567890abcdef12345678", true},
		{"checksummed", "0xAbCdEf1234567890AbCdEf1234567890aBcDeF12", true},
		{"surrounding spaces", "  0x1234567890abcdef1234567890abcdef12345678 ", true},
		{"missing prefix", "1234567890abcdef1234567890abcdef12345678", false},
		{"too short", "0x1234", false},
		{"non hex", "0xzz34567890abcdef1234567890abcdef12345678", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidAddress(tt.address); got != tt.want {
				t.Errorf("IsValidAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestNormalizeTxHash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0xABC", "0xabc"},
		{"abc", "0xabc"},
		{" 0xDef ", "0xdef"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeTxHash(tt.in); got != tt.want {
			t.Errorf("NormalizeTxHash(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValidTxHash(t *testing.T) {
	valid := "0x" + "ab12" + "0000000000000000000000000000000000000000000000000000000000ff"
	if !IsValidTxHash(valid) {
		t.Errorf("IsValidTxHash(%q) = false, want true", valid)
	}
	if IsValidTxHash("0x1234") {
		t.Error("IsValidTxHash(short) = true, want false")
	}
}

func TestTransactionTypeIsValid(t *testing.T) {
	for _, tt := range []TransactionType{TxTypeDeposit, TxTypeClaim, TxTypeStake, TxTypeUnstake, TxTypeMint, TxTypeWithdraw} {
		if !tt.IsValid() {
			t.Errorf("%s.IsValid() = false", tt)
		}
	}
	if TransactionType("airdrop").IsValid() {
		t.Error("airdrop.IsValid() = true, want false")
	}
}
