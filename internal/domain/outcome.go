package domain

import (
	"fmt"
	"strings"
)

// Outcome es el veredicto ternario del oráculo de resolución.
type Outcome string

const (
	OutcomeParticipant1 Outcome = "PARTICIPANT1_WIN"
	OutcomeParticipant2 Outcome = "PARTICIPANT2_WIN"
	OutcomeInconclusive Outcome = "INCONCLUSIVE"
)

// ParseOutcome valida un token del oráculo. Cualquier cosa fuera de los
// tres tokens reconocidos es un error: el caller lo trata como
// "indeterminado este ciclo" y reintenta, nunca como un resultado.
func ParseOutcome(raw string) (Outcome, error) {
	switch Outcome(strings.TrimSpace(raw)) {
	case OutcomeParticipant1:
		return OutcomeParticipant1, nil
	case OutcomeParticipant2:
		return OutcomeParticipant2, nil
	case OutcomeInconclusive:
		return OutcomeInconclusive, nil
	}
	return "", fmt.Errorf("domain.ParseOutcome: unrecognized verdict %q", raw)
}
