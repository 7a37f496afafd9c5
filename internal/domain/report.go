package domain

import "time"

// ProcessResult clasifica el desenlace de procesar una bet en un tick.
// Reemplaza el "log y seguir" implícito: el loop consume resultados
// tipados por bet.
type ProcessResult string

const (
	// ResultNoChange: nada que hacer (deadline no alcanzado, funding parcial...).
	ResultNoChange ProcessResult = "no_change"
	// ResultTransitioned: el estado avanzó en el ledger.
	ResultTransitioned ProcessResult = "transitioned"
	// ResultRetry: fallo transitorio; se reintenta en el próximo tick sin
	// cambiar el estado.
	ResultRetry ProcessResult = "retry"
	// ResultNeedsReview: broadcast ambiguo u otra condición que exige
	// reconciliación manual antes de más transferencias automáticas.
	ResultNeedsReview ProcessResult = "needs_review"
)

// BetReport es el resultado por bet que consume el reconciler.
type BetReport struct {
	BetID  uint64
	Result ProcessResult
	From   BetStatus
	To     BetStatus
	Stage  string // funding | oracle | transfer | ledger
	Err    error
}

// CycleSummary resume un tick completo del reconciler.
type CycleSummary struct {
	TickedAt     time.Time
	Unfunded     int
	Live         int
	Transitioned int
	Retries      int
	Reviews      int
	Duration     time.Duration
}
