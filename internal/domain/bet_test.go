package domain

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to BetStatus
		ok       bool
	}{
		{StatusUnfunded, StatusLive, true},
		{StatusUnfunded, StatusResolved, false},
		{StatusUnfunded, StatusInconclusive, false},
		{StatusLive, StatusResolved, true},
		{StatusLive, StatusInconclusive, true},
		{StatusLive, StatusUnfunded, false},
		{StatusResolved, StatusLive, false},
		{StatusResolved, StatusInconclusive, false},
		{StatusInconclusive, StatusResolved, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s → %s", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusUnfunded.Terminal())
	assert.False(t, StatusLive.Terminal())
	assert.True(t, StatusResolved.Terminal())
	assert.True(t, StatusInconclusive.Terminal())
}

func TestDeadline(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bet := Bet{CreatedAt: created, DeadlineHours: 48}

	assert.Equal(t, created.Add(48*time.Hour), bet.Deadline())
	assert.False(t, bet.DeadlinePassed(created.Add(47*time.Hour)))
	// el deadline exacto ya cuenta como vencido
	assert.True(t, bet.DeadlinePassed(created.Add(48*time.Hour)))
	assert.True(t, bet.DeadlinePassed(created.Add(49*time.Hour)))
}

func TestPayout(t *testing.T) {
	bet := Bet{Amount: big.NewInt(5_000_000)}
	assert.Equal(t, "10000000", bet.Payout().String())
	// Payout no debe mutar el stake original
	assert.Equal(t, "5000000", bet.Amount.String())
}

func TestStatusAge(t *testing.T) {
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(3 * time.Hour)

	bet := Bet{CreatedAt: created}
	assert.Equal(t, 3*time.Hour, bet.StatusAge(now))

	bet.LastStatusChange = created.Add(2 * time.Hour)
	assert.Equal(t, time.Hour, bet.StatusAge(now))
}

func TestParseOutcome(t *testing.T) {
	for raw, want := range map[string]Outcome{
		"PARTICIPANT1_WIN":   OutcomeParticipant1,
		"PARTICIPANT2_WIN":   OutcomeParticipant2,
		"INCONCLUSIVE":       OutcomeInconclusive,
		" PARTICIPANT1_WIN ": OutcomeParticipant1, // whitespace tolerado
	} {
		got, err := ParseOutcome(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	for _, raw := range []string{
		"",
		"participant1_win", // case sensitive
		"PARTICIPANT1 WINS",
		"I think PARTICIPANT1_WIN",
		"DRAW",
	} {
		_, err := ParseOutcome(raw)
		assert.Error(t, err, raw)
	}
}

func TestNewDepositPath(t *testing.T) {
	p1, err := NewDepositPath("wager-evm")
	require.NoError(t, err)
	p2, err := NewDepositPath("wager-evm")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p1, "wager-evm-"))
	assert.Len(t, p1, len("wager-evm-")+32)
	assert.NotEqual(t, p1, p2)

	p3, err := NewDepositPath("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p3, DefaultPathNamespace+"-"))
}

func TestTransferPath(t *testing.T) {
	assert.Equal(t, "bet-42/payout", TransferPath(42, TransferPayout))
	assert.Equal(t, "bet-42/refund_p1", TransferPath(42, TransferRefundP1))
	assert.Equal(t, "bet-7/refund_p2", TransferPath(7, TransferRefundP2))
	// determinista: mismo evento, mismo path
	assert.Equal(t, TransferPath(42, TransferPayout), TransferPath(42, TransferPayout))
}
