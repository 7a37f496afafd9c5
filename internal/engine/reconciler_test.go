package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

func newReconcilerHarness(workers int) (*Reconciler, *harness) {
	h := newHarness()
	r := NewReconciler(
		ReconcilerConfig{Interval: time.Hour, Workers: workers},
		h.machine, h.ledger, h.audit,
	)
	return r, h
}

func queuedBet(id uint64, status domain.BetStatus) domain.Bet {
	bet := testBet(status)
	bet.ID = id
	bet.Participant1Path = "p1-" + bet.Participant1Path
	bet.Participant2Path = "p2-" + bet.Participant2Path
	return bet
}

func TestRunOnceProcessesBothQueues(t *testing.T) {
	r, h := newReconcilerHarness(2)

	unfunded := testBet(domain.StatusUnfunded)
	unfunded.ID = 1
	h.fund(unfunded.Participant1Path, 100)
	h.fund(unfunded.Participant2Path, 100)

	live := testBet(domain.StatusLive)
	live.ID = 2
	h.oracle.outcome = domain.OutcomeParticipant1

	h.ledger.queues[domain.StatusUnfunded] = []domain.Bet{unfunded}
	h.ledger.queues[domain.StatusLive] = []domain.Bet{live}

	require.NoError(t, r.RunOnce(context.Background()))

	assert.ElementsMatch(t, []string{"1:Live", "2:Resolved"}, h.ledger.updates)

	require.Len(t, h.audit.cycles, 1)
	cycle := h.audit.cycles[0]
	assert.Equal(t, 1, cycle.Unfunded)
	assert.Equal(t, 1, cycle.Live)
	assert.Equal(t, 2, cycle.Transitioned)
	assert.Zero(t, cycle.Retries)
	assert.Zero(t, cycle.Reviews)
}

func TestRunOnceFaultIsolation(t *testing.T) {
	// Una bet con fallo transitorio no impide que el resto del ciclo avance.
	r, h := newReconcilerHarness(1)

	broken := testBet(domain.StatusUnfunded)
	broken.ID = 1
	broken.Participant1Path = "broken-path"
	h.balances.errs["0xderived-broken-path"] = errors.New("rpc down")

	healthy := testBet(domain.StatusUnfunded)
	healthy.ID = 2
	healthy.Participant1Path = "ok-p1"
	healthy.Participant2Path = "ok-p2"
	h.fund("ok-p1", 1)
	h.fund("ok-p2", 1)

	h.ledger.queues[domain.StatusUnfunded] = []domain.Bet{broken, healthy}

	require.NoError(t, r.RunOnce(context.Background()))

	assert.Equal(t, []string{"2:Live"}, h.ledger.updates)
	require.Len(t, h.audit.cycles, 1)
	assert.Equal(t, 1, h.audit.cycles[0].Retries)
	assert.Equal(t, 1, h.audit.cycles[0].Transitioned)
}

func TestRunOnceFetchErrorAborts(t *testing.T) {
	r, h := newReconcilerHarness(2)
	h.ledger.err = errors.New("gateway down")

	err := r.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Empty(t, h.audit.cycles)
}

func TestRunOnceEmptyQueuesNoCycleRow(t *testing.T) {
	r, h := newReconcilerHarness(2)
	require.NoError(t, r.RunOnce(context.Background()))
	assert.Empty(t, h.audit.cycles)
}

func TestRunOnceManyBetsWithWorkerCap(t *testing.T) {
	r, h := newReconcilerHarness(3)

	var bets []domain.Bet
	for i := uint64(1); i <= 10; i++ {
		bet := queuedBet(i, domain.StatusUnfunded)
		bet.Participant1Path = bet.Participant1Path + bet.Challenger
		h.balances.balances["0xderived-"+bet.Participant1Path] = big.NewInt(1)
		h.balances.balances["0xderived-"+bet.Participant2Path] = big.NewInt(1)
		bets = append(bets, bet)
	}
	h.ledger.queues[domain.StatusUnfunded] = bets

	require.NoError(t, r.RunOnce(context.Background()))

	assert.Len(t, h.ledger.updates, 10)
	require.Len(t, h.audit.cycles, 1)
	assert.Equal(t, 10, h.audit.cycles[0].Transitioned)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	r, _ := newReconcilerHarness(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop on cancel")
	}
}
