package domain

import (
	"math/big"
	"time"
)

// TransferRequest describe un movimiento de fondos a construir y emitir.
// El builder NO es idempotente: dos llamadas producen dos transferencias.
// La máquina de estados es la responsable de invocarlo como máximo una vez
// por (bet, evento), usando el estado del ledger como barrera.
type TransferRequest struct {
	BetID uint64
	Kind  TransferKind

	// SourcePath es el path de derivación que controla los fondos origen.
	SourcePath string
	// SourceOwner es la identidad dueña del path para el signing service.
	SourceOwner string
	// SourceAddress es la dirección ya derivada del path origen.
	SourceAddress string

	// OpPath es el path de operación determinista (TransferPath) que el
	// signing service usa para rechazar duplicados. Distinto de los paths
	// de depósito: una firma de payout no se puede replayar.
	OpPath string

	Destination string
	Amount      *big.Int
}

// Transfer es la entrada del journal de auditoría de una transferencia
// ya emitida (broadcast aceptado).
type Transfer struct {
	ID          string // uuid
	BetID       uint64
	Kind        TransferKind
	SourcePath  string
	Destination string
	Amount      *big.Int
	TxHash      string
	SentAt      time.Time
}
