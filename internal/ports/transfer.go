package ports

import (
	"context"
	"errors"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

// ErrBroadcastAmbiguous: la transacción se envió pero no se pudo confirmar
// si el nodo la aceptó. Reintentar a ciegas podría duplicar la
// transferencia; la bet queda marcada para revisión de operador.
var ErrBroadcastAmbiguous = errors.New("broadcast outcome ambiguous")

// ErrTransferReverted: la transacción fue incluida pero revirtió on-chain.
// Los fondos no se movieron, pero el path de firma ya se consumió, así que
// la recuperación es manual.
var ErrTransferReverted = errors.New("transfer reverted on-chain")

// TransferExecutor construye, firma (vía signing service delegado) y emite
// una transferencia de tokens. NO es idempotente.
type TransferExecutor interface {
	// Transfer devuelve el hash de la transacción emitida. Puede devolver
	// un hash junto a ErrBroadcastAmbiguous o ErrTransferReverted.
	Transfer(ctx context.Context, req domain.TransferRequest) (txHash string, err error)
}
