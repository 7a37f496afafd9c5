package ports

import "context"

// AddressResolver deriva direcciones de depósito a partir de la master key
// del signing service. Determinista: mismos (owner, path) → misma dirección,
// así que no hace falta persistir nada localmente.
type AddressResolver interface {
	DeriveAddress(ctx context.Context, owner, path string) (address, publicKey string, err error)
}
