package ports

import (
	"context"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

// AuditStore persiste el journal de transferencias, los flags de revisión
// de operador y los resúmenes por tick. Es local al bot: no es el ledger.
type AuditStore interface {
	// SaveTransfer registra una transferencia ya emitida.
	SaveTransfer(ctx context.Context, t domain.Transfer) error

	// GetTransfers devuelve el journal de una bet, en orden de emisión.
	GetTransfers(ctx context.Context, betID uint64) ([]domain.Transfer, error)

	// FlagForReview marca una bet para reconciliación manual. Mientras el
	// flag esté abierto no se emiten más transferencias automáticas.
	FlagForReview(ctx context.Context, betID uint64, reason string) error

	// HasOpenReview devuelve true si la bet tiene un flag sin resolver.
	HasOpenReview(ctx context.Context, betID uint64) (bool, error)

	// SaveCycle registra el resumen de un tick del reconciler.
	SaveCycle(ctx context.Context, c domain.CycleSummary) error

	// Close cierra la conexión limpiamente.
	Close() error
}
