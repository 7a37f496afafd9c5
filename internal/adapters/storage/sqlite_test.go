package storage

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTransfer(betID uint64, kind domain.TransferKind) domain.Transfer {
	return domain.Transfer{
		BetID:       betID,
		Kind:        kind,
		SourcePath:  "escrow-main",
		Destination: "0xaaaa",
		Amount:      big.NewInt(2_000_000),
		TxHash:      "0xtxhash",
		SentAt:      time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndGetTransfers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTransfer(ctx, sampleTransfer(42, domain.TransferRefundP1)))
	require.NoError(t, s.SaveTransfer(ctx, sampleTransfer(42, domain.TransferRefundP2)))
	require.NoError(t, s.SaveTransfer(ctx, sampleTransfer(7, domain.TransferPayout)))

	transfers, err := s.GetTransfers(ctx, 42)
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	got := transfers[0]
	assert.NotEmpty(t, got.ID) // uuid autogenerado
	assert.Equal(t, uint64(42), got.BetID)
	assert.Equal(t, domain.TransferRefundP1, got.Kind)
	assert.Equal(t, "2000000", got.Amount.String())
	assert.Equal(t, "0xtxhash", got.TxHash)
	assert.Equal(t, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), got.SentAt)

	other, err := s.GetTransfers(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSaveTransferDuplicateEventRejected(t *testing.T) {
	// UNIQUE(bet_id, kind): un segundo payout para la misma bet es un bug
	// aguas arriba y la DB lo hace explotar en vez de taparlo.
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTransfer(ctx, sampleTransfer(42, domain.TransferPayout)))
	err := s.SaveTransfer(ctx, sampleTransfer(42, domain.TransferPayout))
	assert.Error(t, err)
}

func TestReviewFlags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	open, err := s.HasOpenReview(ctx, 42)
	require.NoError(t, err)
	assert.False(t, open)

	require.NoError(t, s.FlagForReview(ctx, 42, "ambiguous broadcast"))

	open, err = s.HasOpenReview(ctx, 42)
	require.NoError(t, err)
	assert.True(t, open)

	// otra bet no se ve afectada
	open, err = s.HasOpenReview(ctx, 7)
	require.NoError(t, err)
	assert.False(t, open)

	require.NoError(t, s.ResolveReview(ctx, 42))
	open, err = s.HasOpenReview(ctx, 42)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestSaveCycle(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveCycle(context.Background(), domain.CycleSummary{
		TickedAt:     time.Now(),
		Unfunded:     3,
		Live:         2,
		Transitioned: 1,
		Retries:      1,
		Duration:     1500 * time.Millisecond,
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM cycles`).Scan(&count))
	assert.Equal(t, 1, count)
}
