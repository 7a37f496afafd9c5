package ports

import (
	"context"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

// OutcomeOracle consulta el servicio de razonamiento externo con los
// criterios de resolución de una bet. Solo se invoca después del deadline.
// Un error (fallo de red o token no reconocido) deja la bet sin tocar.
type OutcomeOracle interface {
	Resolve(ctx context.Context, criteria string) (domain.Outcome, error)
}
