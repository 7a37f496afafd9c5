package ledger

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

// betJSON es el formato wire del gateway del contrato. Los importes van
// como strings decimales (u128 del contrato) y los timestamps en unix
// seconds.
type betJSON struct {
	ID                uint64             `json:"id"`
	Challenger        string             `json:"challenger"`
	Challenged        string             `json:"challenged"`
	ChallengerAddress string             `json:"challenger_address"`
	ChallengedAddress string             `json:"challenged_address"`
	Amount            string             `json:"amount"`
	P1DepositPath     string             `json:"participant1_deposit_path"`
	P2DepositPath     string             `json:"participant2_deposit_path"`
	Criteria          string             `json:"resolution_criteria"`
	CreatedAt         int64              `json:"created_at"`
	DeadlineHours     int                `json:"deadline_hours"`
	Status            string             `json:"status"`
	LastStatusChange  int64              `json:"last_status_change"`
	StatusHistory     []statusChangeJSON `json:"status_history"`
}

type statusChangeJSON struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// GetBetsByStatus implementa ports.Ledger.
func (c *Client) GetBetsByStatus(ctx context.Context, status domain.BetStatus) ([]domain.Bet, error) {
	u := fmt.Sprintf("%s/bets?status=%s", c.baseURL, url.QueryEscape(string(status)))

	var raw []betJSON
	if err := c.get(ctx, u, &raw); err != nil {
		return nil, fmt.Errorf("ledger.GetBetsByStatus: %w", err)
	}
	return mapBets(raw)
}

// GetAllBets implementa ports.Ledger.
func (c *Client) GetAllBets(ctx context.Context) ([]domain.Bet, error) {
	var raw []betJSON
	if err := c.get(ctx, c.baseURL+"/bets", &raw); err != nil {
		return nil, fmt.Errorf("ledger.GetAllBets: %w", err)
	}
	return mapBets(raw)
}

// UpdateBetStatus implementa ports.Ledger. El gateway aplica la escritura
// de forma atómica por bet; el contrato solo añade al historial si el
// estado realmente cambia.
func (c *Client) UpdateBetStatus(ctx context.Context, betID uint64, status domain.BetStatus) error {
	u := fmt.Sprintf("%s/bets/%d/status", c.baseURL, betID)
	body := map[string]string{"status": string(status)}
	if err := c.post(ctx, u, body, nil); err != nil {
		return fmt.Errorf("ledger.UpdateBetStatus: bet %d → %s: %w", betID, status, err)
	}
	return nil
}

func mapBets(raw []betJSON) ([]domain.Bet, error) {
	bets := make([]domain.Bet, 0, len(raw))
	for _, r := range raw {
		b, err := mapBet(r)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, nil
}

func mapBet(r betJSON) (domain.Bet, error) {
	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return domain.Bet{}, fmt.Errorf("ledger.mapBet: bet %d: bad amount %q", r.ID, r.Amount)
	}

	history := make([]domain.StatusChange, 0, len(r.StatusHistory))
	for _, h := range r.StatusHistory {
		history = append(history, domain.StatusChange{
			Status:    domain.BetStatus(h.Status),
			Timestamp: time.Unix(h.Timestamp, 0).UTC(),
		})
	}

	return domain.Bet{
		ID:                 r.ID,
		Challenger:         r.Challenger,
		Challenged:         r.Challenged,
		ChallengerAddress:  r.ChallengerAddress,
		ChallengedAddress:  r.ChallengedAddress,
		Amount:             amount,
		Participant1Path:   r.P1DepositPath,
		Participant2Path:   r.P2DepositPath,
		ResolutionCriteria: r.Criteria,
		CreatedAt:          time.Unix(r.CreatedAt, 0).UTC(),
		DeadlineHours:      r.DeadlineHours,
		Status:             domain.BetStatus(r.Status),
		LastStatusChange:   time.Unix(r.LastStatusChange, 0).UTC(),
		StatusHistory:      history,
	}, nil
}
