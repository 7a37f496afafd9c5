package engine

// reconciler.go: el loop de reconciliación por polling.
//
// Cada tick lee las dos colas del ledger (Unfunded y Live) y pasa cada
// bet por la máquina de estados. El cuerpo del tick es síncrono: un tick
// no empieza hasta que terminó el anterior, así que nunca hay dos ciclos
// solapados mirando la misma bet.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
)

// ReconcilerConfig controla el ritmo y paralelismo del loop.
type ReconcilerConfig struct {
	Interval time.Duration
	Workers  int
}

// Reconciler ejecuta el ciclo periódico de reconciliación.
type Reconciler struct {
	cfg     ReconcilerConfig
	machine *Machine
	ledger  ports.Ledger
	audit   ports.AuditStore

	locks betLocks
}

// NewReconciler crea el reconciler. audit puede ser nil (sin resúmenes).
func NewReconciler(cfg ReconcilerConfig, machine *Machine, ledger ports.Ledger, audit ports.AuditStore) *Reconciler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Reconciler{
		cfg:     cfg,
		machine: machine,
		ledger:  ledger,
		audit:   audit,
		locks:   betLocks{locks: make(map[uint64]*sync.Mutex)},
	}
}

// Run arranca el loop: un ciclo inmediato y después uno por tick hasta
// que el contexto se cancele.
func (r *Reconciler) Run(ctx context.Context) error {
	slog.Info("reconciler started",
		"interval", r.cfg.Interval,
		"workers", r.cfg.Workers,
	)

	if err := r.RunOnce(ctx); err != nil {
		slog.Error("initial cycle failed", "err", err)
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				slog.Error("cycle failed", "err", err)
			}
		}
	}
}

// RunOnce ejecuta un ciclo completo: fetch de las dos colas, proceso en
// paralelo acotado y resumen. Un fallo por bet nunca aborta el ciclo; solo
// un fallo de fetch (no hay nada que procesar) devuelve error.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	start := r.machine.Now()

	unfunded, err := r.ledger.GetBetsByStatus(ctx, domain.StatusUnfunded)
	if err != nil {
		return err
	}
	live, err := r.ledger.GetBetsByStatus(ctx, domain.StatusLive)
	if err != nil {
		return err
	}

	if len(unfunded) == 0 && len(live) == 0 {
		slog.Debug("nothing to reconcile")
		return nil
	}

	reports := make([]domain.BetReport, 0, len(unfunded)+len(live))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	process := func(bet domain.Bet, fn func(context.Context, domain.Bet) domain.BetReport) {
		g.Go(func() error {
			unlock := r.locks.lock(bet.ID)
			defer unlock()

			report := fn(gctx, bet)
			if report.Err != nil {
				slog.Warn("bet processing error",
					"bet", report.BetID,
					"stage", report.Stage,
					"result", report.Result,
					"err", report.Err,
				)
			}

			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}

	for _, bet := range unfunded {
		process(bet, r.machine.EvaluateFunding)
	}
	for _, bet := range live {
		process(bet, r.machine.ResolveBet)
	}
	g.Wait()

	summary := summarize(reports, start, r.machine.Now())
	summary.Unfunded = len(unfunded)
	summary.Live = len(live)

	slog.Info("cycle complete",
		"unfunded", summary.Unfunded,
		"live", summary.Live,
		"transitioned", summary.Transitioned,
		"retries", summary.Retries,
		"reviews", summary.Reviews,
		"duration", summary.Duration,
	)

	if r.audit != nil {
		if err := r.audit.SaveCycle(ctx, summary); err != nil {
			slog.Warn("failed to save cycle summary", "err", err)
		}
	}
	return nil
}

func summarize(reports []domain.BetReport, start, end time.Time) domain.CycleSummary {
	s := domain.CycleSummary{TickedAt: start, Duration: end.Sub(start)}
	for _, rep := range reports {
		switch rep.Result {
		case domain.ResultTransitioned:
			s.Transitioned++
		case domain.ResultRetry:
			s.Retries++
		case domain.ResultNeedsReview:
			s.Reviews++
		}
	}
	return s
}

// betLocks serializa el procesamiento por bet. El tick síncrono ya evita
// solapamientos entre ciclos; esto cubre la misma bet apareciendo dos
// veces dentro de un ciclo (no debería, pero el ledger manda).
type betLocks struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

func (b *betLocks) lock(betID uint64) func() {
	b.mu.Lock()
	l, ok := b.locks[betID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[betID] = l
	}
	b.mu.Unlock()

	l.Lock()
	return l.Unlock
}
