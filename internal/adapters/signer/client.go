package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Cada firma cuesta una derivación MPC en el servicio; el límite
	// documentado es 20/s, nos quedamos por debajo.
	requestsPerSec = 10

	signatureLen = 65 // ECDSA recuperable: r || s || v
)

// Client es el HTTP client del signing service delegado: deriva
// direcciones desde la master key y firma payloads scoped a un path.
type Client struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	keyVersion int
	limiter    *rate.Limiter
}

// NewClient crea un Client contra el signing service.
func NewClient(baseURL, apiKey string, keyVersion int) *Client {
	return &Client{
		http:       &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		keyVersion: keyVersion,
		limiter:    rate.NewLimiter(requestsPerSec, 5),
	}
}

type deriveRequest struct {
	Owner string `json:"owner"`
	Path  string `json:"path"`
}

type deriveResponse struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
}

// DeriveAddress implementa ports.AddressResolver. Mismo (owner, path) →
// misma dirección siempre; no hay nada que cachear ni persistir.
func (c *Client) DeriveAddress(ctx context.Context, owner, path string) (string, string, error) {
	var out deriveResponse
	err := c.post(ctx, c.baseURL+"/derive", deriveRequest{Owner: owner, Path: path}, &out)
	if err != nil {
		return "", "", fmt.Errorf("signer.DeriveAddress: owner %s path %s: %w", owner, path, err)
	}
	if out.Address == "" {
		return "", "", fmt.Errorf("signer.DeriveAddress: empty address for path %s", path)
	}
	return out.Address, out.PublicKey, nil
}

type signRequest struct {
	PayloadHex string `json:"payload_hex"`
	Path       string `json:"path"`
	OpPath     string `json:"op_path"`
	KeyVersion int    `json:"key_version"`
}

type signResponse struct {
	SignatureHex string `json:"signature_hex"`
}

// Sign pide una firma delegada sobre payload, con la key scoped al path
// dado. Devuelve los 65 bytes r||s||v listos para ensamblar la
// transacción. opPath es el identificador determinista de la operación:
// el servicio rechaza firmar dos veces el mismo opPath, que es la barrera
// contra replay de payouts/refunds.
func (c *Client) Sign(ctx context.Context, payload []byte, path, opPath string) ([]byte, error) {
	req := signRequest{
		PayloadHex: hex.EncodeToString(payload),
		Path:       path,
		OpPath:     opPath,
		KeyVersion: c.keyVersion,
	}

	var out signResponse
	if err := c.post(ctx, c.baseURL+"/sign", req, &out); err != nil {
		return nil, fmt.Errorf("signer.Sign: path %s: %w", path, err)
	}

	sig, err := hex.DecodeString(out.SignatureHex)
	if err != nil {
		return nil, fmt.Errorf("signer.Sign: decode signature: %w", err)
	}
	if len(sig) != signatureLen {
		return nil, fmt.Errorf("signer.Sign: expected %d-byte signature, got %d", signatureLen, len(sig))
	}
	return sig, nil
}

// post hace un POST JSON con rate limiting. Sin retries: reintentar una
// firma a ciegas es decisión del caller, no del transporte.
func (c *Client) post(ctx context.Context, url string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
