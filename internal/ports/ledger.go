package ports

import (
	"context"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

// Ledger es el contrato de apuestas: la única fuente de verdad sobre el
// estado de cada bet. Nadie fuera de la máquina de estados debe escribirlo.
type Ledger interface {
	// GetBetsByStatus devuelve todas las bets en el estado dado.
	GetBetsByStatus(ctx context.Context, status domain.BetStatus) ([]domain.Bet, error)

	// UpdateBetStatus avanza el estado de una bet. Es atómico por bet:
	// escrituras concurrentes sobre bets distintas no interfieren.
	UpdateBetStatus(ctx context.Context, betID uint64, status domain.BetStatus) error

	// GetAllBets devuelve todas las bets registradas (reporte de operador).
	GetAllBets(ctx context.Context) ([]domain.Bet, error)
}
