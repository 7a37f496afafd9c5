package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

// requestsPerSec limita las consultas al servicio de razonamiento: cada
// resolución dispara una inferencia cara, y un tick con muchas bets
// vencidas no debe tumbarlo.
const requestsPerSec = 2

// Client es el HTTP client del oráculo de outcomes. Implementa
// ports.OutcomeOracle. Solo se le consulta tras el deadline de la bet;
// cualquier respuesta fuera de los tres tokens reconocidos se devuelve
// como error y la bet queda intacta hasta el próximo ciclo.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient crea un Client contra el servicio de razonamiento.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(requestsPerSec, 1),
	}
}

type resolveRequest struct {
	Criteria string `json:"criteria"`
}

type resolveResponse struct {
	Verdict string `json:"verdict"`
}

// Resolve consulta el veredicto para los criterios dados.
func (c *Client) Resolve(ctx context.Context, criteria string) (domain.Outcome, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("oracle.Resolve: rate limiter: %w", err)
	}

	body, err := json.Marshal(resolveRequest{Criteria: criteria})
	if err != nil {
		return "", fmt.Errorf("oracle.Resolve: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/resolve", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("oracle.Resolve: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle.Resolve: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("oracle.Resolve: status %d: %s", resp.StatusCode, string(respBody))
	}

	var out resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("oracle.Resolve: decode response: %w", err)
	}

	// Estricto: nada de adivinar con respuestas ruidosas.
	outcome, err := domain.ParseOutcome(out.Verdict)
	if err != nil {
		return "", fmt.Errorf("oracle.Resolve: %w", err)
	}
	return outcome, nil
}
