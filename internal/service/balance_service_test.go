package service

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/blocke-ledger/internal/errors"
)

func TestBalanceService_UnknownAddressIsZero(t *testing.T) {
	svc := NewBalanceService(newFakeBalanceStore())

	addr, balance, err := svc.GetBalance(context.Background(), addrMixed)
	require.NoError(t, err)
	assert.Equal(t, addrLower, addr)
	assert.Zero(t, balance)
}

func TestBalanceService_CaseInsensitiveKey(t *testing.T) {
	store := newFakeBalanceStore()
	svc := NewBalanceService(store)
	ctx := context.Background()

	_, err := svc.SetBalance(ctx, addrMixed, 9)
	require.NoError(t, err)

	_, balance, err := svc.GetBalance(ctx, addrLower)
	require.NoError(t, err)
	assert.Equal(t, int64(9), balance)
	assert.Len(t, store.balances, 1)
}

func TestBalanceService_Validation(t *testing.T) {
	svc := NewBalanceService(newFakeBalanceStore())
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"missing address", func() error { _, _, err := svc.GetBalance(ctx, ""); return err }},
		{"short address", func() error { _, _, err := svc.GetBalance(ctx, "0x1234"); return err }},
		{"negative set", func() error { _, err := svc.SetBalance(ctx, addrLower, -1); return err }},
		{"zero credit", func() error { _, err := svc.Credit(ctx, addrLower, 0); return err }},
		{"deduct bad address", func() error { _, err := svc.Deduct(ctx, "nope"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
			assert.Equal(t, 400, apperrors.Categorize(err).StatusCode)
		})
	}
}

func TestBalanceService_Credit(t *testing.T) {
	svc := NewBalanceService(newFakeBalanceStore())
	ctx := context.Background()

	got, err := svc.Credit(ctx, addrMixed, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	got, err = svc.Deduct(ctx, addrLower)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)
}

func TestBalanceService_DeductProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("deduct fails iff balance <= 0, otherwise decrements by one", prop.ForAll(
		func(start int64) bool {
			store := newFakeBalanceStore()
			store.balances[addrLower] = start
			svc := NewBalanceService(store)

			got, err := svc.Deduct(context.Background(), addrMixed)
			if start <= 0 {
				cat := apperrors.Categorize(err)
				return cat != nil && cat.Code == apperrors.CodeInsufficientBalance &&
					cat.Message == "Insufficient balance" && store.balances[addrLower] == start
			}
			return err == nil && got == start-1 && store.balances[addrLower] == start-1
		},
		gen.Int64Range(-50, 50),
	))

	properties.TestingRun(t)
}
