package engine

// machine.go: the bet state machine.
//
// Owns the only two transitions a bet can take:
//
//   Unfunded → Live                    both deposits positive, same pass
//   Live     → Resolved|Inconclusive   deadline passed + oracle verdict
//
// Ordering invariant for resolution: verdict first, then transfers, then
// the ledger status write, then the notification. The ledger status is the
// de-duplication boundary: a transfer is only ever attempted while the
// bet is observed pre-transition, and the status only advances after every
// required broadcast was accepted. If the ledger write itself fails the
// bet stays in its old status and the next cycle retries; the transfer
// journal keeps that retry from re-broadcasting.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
)

// Config holds the settlement-side knobs of the machine.
type Config struct {
	// EscrowPath/EscrowOwner identify the consolidated source the payouts
	// are drawn from. Refunds are drawn from each participant's own
	// deposit path instead.
	EscrowPath  string
	EscrowOwner string
}

// Machine decides and applies bet transitions. All collaborators are
// injected; Now is swappable for tests.
type Machine struct {
	cfg       Config
	ledger    ports.Ledger
	resolver  ports.AddressResolver
	balances  ports.BalanceProvider
	oracle    ports.OutcomeOracle
	transfers ports.TransferExecutor
	notifier  ports.Notifier
	audit     ports.AuditStore

	Now func() time.Time

	// partial funding is reported once per bet per process, not every tick
	partialMu       sync.Mutex
	partialNotified map[uint64]bool
}

// NewMachine creates the state machine with all dependencies injected.
func NewMachine(
	cfg Config,
	ledger ports.Ledger,
	resolver ports.AddressResolver,
	balances ports.BalanceProvider,
	oracle ports.OutcomeOracle,
	transfers ports.TransferExecutor,
	notifier ports.Notifier,
	audit ports.AuditStore,
) *Machine {
	return &Machine{
		cfg:             cfg,
		ledger:          ledger,
		resolver:        resolver,
		balances:        balances,
		oracle:          oracle,
		transfers:       transfers,
		notifier:        notifier,
		audit:           audit,
		Now:             time.Now,
		partialNotified: make(map[uint64]bool),
	}
}

// EvaluateFunding applies the Unfunded → Live rule to one bet.
func (m *Machine) EvaluateFunding(ctx context.Context, bet domain.Bet) domain.BetReport {
	report := domain.BetReport{BetID: bet.ID, From: bet.Status, Stage: "funding"}

	if bet.Status != domain.StatusUnfunded {
		report.Result = domain.ResultNoChange
		return report
	}

	addr1, _, err := m.resolver.DeriveAddress(ctx, bet.Challenger, bet.Participant1Path)
	if err != nil {
		return retry(report, err)
	}
	addr2, _, err := m.resolver.DeriveAddress(ctx, bet.Challenged, bet.Participant2Path)
	if err != nil {
		return retry(report, err)
	}

	// An unknown balance is NOT a zero: bail out and let the next tick
	// look again, so one flaky RPC read can't mask real funding.
	bal1, err := m.balances.Balance(ctx, addr1)
	if err != nil {
		return retry(report, err)
	}
	bal2, err := m.balances.Balance(ctx, addr2)
	if err != nil {
		return retry(report, err)
	}

	funded1, funded2 := bal1.Sign() > 0, bal2.Sign() > 0
	switch {
	case funded1 && funded2:
		if err := m.transition(ctx, &bet, domain.StatusLive); err != nil {
			report.Stage = "ledger"
			return retry(report, err)
		}
		m.post(ctx, fmt.Sprintf("Bet %d is on! %s vs %s, %s tokens each. Deadline: %s.",
			bet.ID, bet.Challenger, bet.Challenged, bet.Amount, bet.Deadline().UTC().Format(time.RFC3339)))
		report.Result = domain.ResultTransitioned
		report.To = domain.StatusLive
		return report

	case funded1 != funded2:
		m.reportPartial(ctx, bet, funded1)
		report.Result = domain.ResultNoChange
		return report

	default:
		report.Result = domain.ResultNoChange
		return report
	}
}

// ResolveBet applies the Live → {Resolved|Inconclusive} rules to one bet.
func (m *Machine) ResolveBet(ctx context.Context, bet domain.Bet) domain.BetReport {
	report := domain.BetReport{BetID: bet.ID, From: bet.Status, Stage: "oracle"}

	if bet.Status != domain.StatusLive {
		report.Result = domain.ResultNoChange
		return report
	}

	now := m.Now()
	if !bet.DeadlinePassed(now) {
		// No oracle call before the deadline, ever.
		report.Result = domain.ResultNoChange
		return report
	}

	open, err := m.audit.HasOpenReview(ctx, bet.ID)
	if err != nil {
		return retry(report, err)
	}
	if open {
		slog.Warn("bet held for operator review, skipping automated settlement", "bet", bet.ID)
		report.Result = domain.ResultNeedsReview
		report.Stage = "transfer"
		return report
	}

	outcome, err := m.oracle.Resolve(ctx, bet.ResolutionCriteria)
	if err != nil {
		// Indeterminate this cycle: noisy oracle output must never cause
		// an irreversible misresolution. Stay Live, ask again next tick.
		return retry(report, err)
	}

	switch outcome {
	case domain.OutcomeParticipant1:
		return m.settleWin(ctx, bet, bet.Challenger, bet.ChallengerAddress)
	case domain.OutcomeParticipant2:
		return m.settleWin(ctx, bet, bet.Challenged, bet.ChallengedAddress)
	default:
		return m.settleInconclusive(ctx, bet)
	}
}

// settleWin pays 2× the stake to the winner, then marks the bet Resolved.
func (m *Machine) settleWin(ctx context.Context, bet domain.Bet, winner, winnerAddr string) domain.BetReport {
	report := domain.BetReport{BetID: bet.ID, From: bet.Status, Stage: "transfer"}

	err := m.sendTransfer(ctx, bet, domain.TransferPayout,
		m.cfg.EscrowOwner, m.cfg.EscrowPath, winnerAddr, bet.Payout())
	if err != nil {
		return transferFailure(report, err)
	}

	if err := m.transition(ctx, &bet, domain.StatusResolved); err != nil {
		// Paid but not yet marked: loud, and retried next tick. The
		// journal entry above keeps the retry from paying twice.
		slog.Error("payout broadcast but ledger write failed, will retry transition",
			"bet", bet.ID, "err", err)
		report.Stage = "ledger"
		return retry(report, err)
	}

	m.post(ctx, fmt.Sprintf("Bet %d resolved: %s wins %s tokens!", bet.ID, winner, bet.Payout()))
	report.Result = domain.ResultTransitioned
	report.To = domain.StatusResolved
	return report
}

// settleInconclusive refunds each participant their own stake, then marks
// the bet Inconclusive.
func (m *Machine) settleInconclusive(ctx context.Context, bet domain.Bet) domain.BetReport {
	report := domain.BetReport{BetID: bet.ID, From: bet.Status, Stage: "transfer"}

	err := m.sendTransfer(ctx, bet, domain.TransferRefundP1,
		bet.Challenger, bet.Participant1Path, bet.ChallengerAddress, stake(bet))
	if err != nil {
		return transferFailure(report, err)
	}

	err = m.sendTransfer(ctx, bet, domain.TransferRefundP2,
		bet.Challenged, bet.Participant2Path, bet.ChallengedAddress, stake(bet))
	if err != nil {
		return transferFailure(report, err)
	}

	if err := m.transition(ctx, &bet, domain.StatusInconclusive); err != nil {
		slog.Error("refunds broadcast but ledger write failed, will retry transition",
			"bet", bet.ID, "err", err)
		report.Stage = "ledger"
		return retry(report, err)
	}

	m.post(ctx, fmt.Sprintf("Bet %d was inconclusive, both stakes refunded (%s each).", bet.ID, bet.Amount))
	report.Result = domain.ResultTransitioned
	report.To = domain.StatusInconclusive
	return report
}

// sendTransfer derives the source address and broadcasts one transfer,
// journaling it on success. A transfer already journaled for the same
// (bet, kind), meaning a previous cycle broadcast it but crashed before
// the ledger write, is skipped rather than repeated.
func (m *Machine) sendTransfer(ctx context.Context, bet domain.Bet, kind domain.TransferKind,
	srcOwner, srcPath, dest string, amount *big.Int) error {

	prior, err := m.audit.GetTransfers(ctx, bet.ID)
	if err != nil {
		return fmt.Errorf("engine.sendTransfer: read journal: %w", err)
	}
	for _, t := range prior {
		if t.Kind == kind {
			slog.Warn("transfer already journaled, skipping re-broadcast",
				"bet", bet.ID, "kind", kind, "tx", t.TxHash)
			return nil
		}
	}

	srcAddr, _, err := m.resolver.DeriveAddress(ctx, srcOwner, srcPath)
	if err != nil {
		return fmt.Errorf("engine.sendTransfer: derive source: %w", err)
	}

	txHash, err := m.transfers.Transfer(ctx, domain.TransferRequest{
		BetID:         bet.ID,
		Kind:          kind,
		SourcePath:    srcPath,
		SourceOwner:   srcOwner,
		SourceAddress: srcAddr,
		OpPath:        domain.TransferPath(bet.ID, kind),
		Destination:   dest,
		Amount:        amount,
	})
	if err != nil {
		if errors.Is(err, ports.ErrBroadcastAmbiguous) || errors.Is(err, ports.ErrTransferReverted) {
			if flagErr := m.audit.FlagForReview(ctx, bet.ID, err.Error()); flagErr != nil {
				slog.Error("failed to flag bet for review", "bet", bet.ID, "err", flagErr)
			}
		}
		return err
	}

	if err := m.audit.SaveTransfer(ctx, domain.Transfer{
		BetID:       bet.ID,
		Kind:        kind,
		SourcePath:  srcPath,
		Destination: dest,
		Amount:      amount,
		TxHash:      txHash,
		SentAt:      m.Now().UTC(),
	}); err != nil {
		// Journal is evidence, not a gate: the broadcast already happened.
		slog.Error("failed to journal transfer", "bet", bet.ID, "kind", kind, "tx", txHash, "err", err)
	}
	return nil
}

// transition writes the new status to the ledger after validating the move.
func (m *Machine) transition(ctx context.Context, bet *domain.Bet, next domain.BetStatus) error {
	if !bet.Status.CanTransitionTo(next) {
		return fmt.Errorf("engine.transition: illegal %s → %s for bet %d", bet.Status, next, bet.ID)
	}
	if err := m.ledger.UpdateBetStatus(ctx, bet.ID, next); err != nil {
		return err
	}
	slog.Info("bet transitioned", "bet", bet.ID, "from", bet.Status, "to", next)
	bet.Status = next
	return nil
}

// reportPartial logs one-sided funding and notifies once per process.
func (m *Machine) reportPartial(ctx context.Context, bet domain.Bet, firstFunded bool) {
	funded, waiting := bet.Challenger, bet.Challenged
	if !firstFunded {
		funded, waiting = bet.Challenged, bet.Challenger
	}
	slog.Info("bet partially funded", "bet", bet.ID, "funded", funded, "waiting_on", waiting)

	m.partialMu.Lock()
	seen := m.partialNotified[bet.ID]
	m.partialNotified[bet.ID] = true
	m.partialMu.Unlock()
	if seen {
		return
	}
	m.post(ctx, fmt.Sprintf("Bet %d: %s has deposited, waiting on %s.", bet.ID, funded, waiting))
}

// post sends a notification; failures are logged and never propagate.
func (m *Machine) post(ctx context.Context, msg string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Post(ctx, msg); err != nil {
		slog.Warn("notifier error", "err", err)
	}
}

func stake(bet domain.Bet) *big.Int {
	return new(big.Int).Set(bet.Amount)
}

func retry(r domain.BetReport, err error) domain.BetReport {
	r.Result = domain.ResultRetry
	r.Err = err
	return r
}

// transferFailure maps a transfer error to its report class: ambiguous or
// reverted broadcasts need an operator, anything else is retried.
func transferFailure(r domain.BetReport, err error) domain.BetReport {
	r.Stage = "transfer"
	r.Err = err
	if errors.Is(err, ports.ErrBroadcastAmbiguous) || errors.Is(err, ports.ErrTransferReverted) {
		r.Result = domain.ResultNeedsReview
	} else {
		r.Result = domain.ResultRetry
	}
	return r
}
