package ports

import (
	"context"
	"math/big"
)

// BalanceProvider consulta el balance del token en una dirección.
// Un error significa "desconocido, reintentar en el próximo ciclo";
// nunca se confunde con un cero confirmado.
type BalanceProvider interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
}
