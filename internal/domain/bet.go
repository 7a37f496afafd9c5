package domain

import (
	"math/big"
	"time"
)

// BetStatus es el estado de una apuesta en el ledger.
// Las transiciones son estrictamente hacia adelante:
// Unfunded → Live → {Resolved | Inconclusive}.
type BetStatus string

const (
	StatusUnfunded     BetStatus = "Unfunded"
	StatusLive         BetStatus = "Live"
	StatusResolved     BetStatus = "Resolved"
	StatusInconclusive BetStatus = "Inconclusive"
)

// Terminal devuelve true si el estado no admite más transiciones.
func (s BetStatus) Terminal() bool {
	return s == StatusResolved || s == StatusInconclusive
}

// CanTransitionTo devuelve true si la transición s → next está permitida.
// Nunca hay reversión ni saltos de estado.
func (s BetStatus) CanTransitionTo(next BetStatus) bool {
	switch s {
	case StatusUnfunded:
		return next == StatusLive
	case StatusLive:
		return next == StatusResolved || next == StatusInconclusive
	default:
		return false
	}
}

// StatusChange es una entrada del historial de estados que mantiene el ledger.
type StatusChange struct {
	Status    BetStatus
	Timestamp time.Time
}

// Bet es el registro central de una apuesta entre dos participantes.
// Lo crea el ledger a partir de una mención social parseada; este core
// solo lo muta a través de las dos transiciones de la máquina de estados.
type Bet struct {
	ID uint64

	// Identidades sociales de los participantes.
	Challenger string
	Challenged string

	// Direcciones de cobro en la chain de settlement, registradas en el intake.
	ChallengerAddress string
	ChallengedAddress string

	// Amount es el stake POR participante, en la unidad mínima del token.
	Amount *big.Int

	// Paths de derivación de los depósitos, únicos por (bet, participante).
	Participant1Path string
	Participant2Path string

	ResolutionCriteria string
	CreatedAt          time.Time
	DeadlineHours      int

	Status           BetStatus
	LastStatusChange time.Time
	StatusHistory    []StatusChange
}

// Deadline devuelve el instante absoluto de resolución:
// creación + DeadlineHours.
func (b Bet) Deadline() time.Time {
	return b.CreatedAt.Add(time.Duration(b.DeadlineHours) * time.Hour)
}

// DeadlinePassed devuelve true si now alcanzó o superó el deadline.
func (b Bet) DeadlinePassed(now time.Time) bool {
	return !now.Before(b.Deadline())
}

// Payout devuelve el importe total para el ganador: 2× el stake
// (los depósitos de ambos participantes combinados).
func (b Bet) Payout() *big.Int {
	return new(big.Int).Mul(b.Amount, big.NewInt(2))
}

// StatusAge devuelve cuánto tiempo lleva la apuesta en su estado actual.
func (b Bet) StatusAge(now time.Time) time.Duration {
	if b.LastStatusChange.IsZero() {
		return now.Sub(b.CreatedAt)
	}
	return now.Sub(b.LastStatusChange)
}
