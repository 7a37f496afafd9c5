package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// DefaultPathNamespace es el tag de la chain de settlement que prefija
// todos los paths de derivación.
const DefaultPathNamespace = "wager-evm"

// NewDepositPath genera un path de derivación fresco para el depósito de
// un participante: <namespace>-<32 hex>. Los 16 bytes salen de crypto/rand
// (128 bits), así que una colisión se trata como imposible en la práctica.
func NewDepositPath(namespace string) (string, error) {
	if namespace == "" {
		namespace = DefaultPathNamespace
	}
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("domain.NewDepositPath: read entropy: %w", err)
	}
	return namespace + "-" + hex.EncodeToString(buf[:]), nil
}

// TransferKind identifica la operación de movimiento de fondos de una bet.
type TransferKind string

const (
	TransferPayout   TransferKind = "payout"
	TransferRefundP1 TransferKind = "refund_p1"
	TransferRefundP2 TransferKind = "refund_p2"
)

// TransferPath devuelve el path de firma determinista para una operación
// (bet, kind). Es distinto de los paths de depósito para que una firma de
// payout no sea reutilizable, y determinista para que el signing service
// pueda rechazar duplicados del mismo evento.
func TransferPath(betID uint64, kind TransferKind) string {
	return fmt.Sprintf("bet-%d/%s", betID, kind)
}
