package service

import (
	"context"
	"testing"

	"jvc-treasury/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMintBurnFixture() (*ledgerFixture, *mintBurnService) {
	lf := newLedgerFixture()
	svc := NewMintBurnService(lf.svc, nil, zerolog.Nop()).(*mintBurnService)
	return lf, svc
}

func TestMint_IncreasesSupplyAndTreasuryFloat(t *testing.T) {
	lf, svc := newMintBurnFixture()
	ctx := context.Background()

	entry, err := svc.Mint(ctx, "", 10000, "initial float", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, domain.OperationMint, entry.OperationType)
	assert.Equal(t, domain.TreasuryPrincipal, entry.Principal)
	assert.Equal(t, int64(10000), entry.SupplyAfter)

	treasury, _ := lf.treasury.Get(ctx)
	assert.Equal(t, int64(10000), treasury.TotalSupply)

	sum, _ := lf.wallets.SumBalances(ctx)
	assert.Equal(t, treasury.TotalSupply, sum)
}

func TestMintThenMintAgain(t *testing.T) {
	_, svc := newMintBurnFixture()
	ctx := context.Background()

	_, err := svc.Mint(ctx, "", 10000, "initial float", "admin-1")
	require.NoError(t, err)
	entry, err := svc.Mint(ctx, "", 500, "top up", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10500), entry.SupplyAfter)
}

func TestMint_RequiresReason(t *testing.T) {
	_, svc := newMintBurnFixture()

	_, err := svc.Mint(context.Background(), "", 100, "  ", "admin-1")
	assertAppError(t, err, "LED_002")
}

func TestBurn_ReducesSupply(t *testing.T) {
	lf, svc := newMintBurnFixture()
	ctx := context.Background()

	_, err := svc.Mint(ctx, "", 1000, "initial float", "admin-1")
	require.NoError(t, err)

	entry, err := svc.Burn(ctx, "", 400, "retire float", "admin-1", false)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationBurn, entry.OperationType)
	assert.Equal(t, int64(600), entry.SupplyAfter)

	treasury, _ := lf.treasury.Get(ctx)
	sum, _ := lf.wallets.SumBalances(ctx)
	assert.Equal(t, treasury.TotalSupply, sum)
}

func TestBurn_ExceedingSupplyFails(t *testing.T) {
	lf, svc := newMintBurnFixture()
	ctx := context.Background()

	_, err := svc.Mint(ctx, "", 100, "initial float", "admin-1")
	require.NoError(t, err)

	// 500 is more than was ever issued; the rejection names the supply,
	// not the balance, and leaves the supply untouched.
	_, err = svc.Burn(ctx, "", 500, "too much", "admin-1", false)
	assertAppError(t, err, "LED_004")

	treasury, _ := lf.treasury.Get(ctx)
	assert.Equal(t, int64(100), treasury.TotalSupply)
}

func TestBurn_FromFrozenWalletWithOverride(t *testing.T) {
	lf, svc := newMintBurnFixture()
	ctx := context.Background()

	_, err := svc.Mint(ctx, "user-1", 200, "seized funds", "admin-1")
	require.NoError(t, err)
	w, _ := lf.wallets.GetByPrincipal(ctx, "user-1")
	require.NoError(t, lf.wallets.SetFrozen(ctx, w.ID, true, strptr("compliance hold")))

	// Without the override the freeze blocks the burn
	_, err = svc.Burn(ctx, "user-1", 200, "confiscation", "admin-1", false)
	assertAppError(t, err, "LED_003")

	entry, err := svc.Burn(ctx, "user-1", 200, "confiscation", "admin-1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), entry.BalanceAfter)
	assert.Equal(t, int64(0), entry.SupplyAfter)
}
