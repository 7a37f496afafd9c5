package signer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/derive", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "@alice", req["owner"])
		assert.Equal(t, "wager-evm-aa11", req["path"])

		json.NewEncoder(w).Encode(map[string]string{
			"address":    "0x1111111111111111111111111111111111111111",
			"public_key": "04deadbeef",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 1)
	addr, pub, err := c.DeriveAddress(context.Background(), "@alice", "wager-evm-aa11")
	require.NoError(t, err)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", addr)
	assert.Equal(t, "04deadbeef", pub)
}

func TestDeriveAddressEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL, "", 1).DeriveAddress(context.Background(), "@alice", "p")
	assert.ErrorContains(t, err, "empty address")
}

func TestSign(t *testing.T) {
	sig := strings.Repeat("ab", 65)
	var gotReq map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sign", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]string{"signature_hex": sig})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 3)
	got, err := c.Sign(context.Background(), []byte{0xde, 0xad}, "escrow-main", "bet-42/payout")
	require.NoError(t, err)
	assert.Len(t, got, 65)

	assert.Equal(t, hex.EncodeToString([]byte{0xde, 0xad}), gotReq["payload_hex"])
	assert.Equal(t, "escrow-main", gotReq["path"])
	// op_path viaja separado del path de la key: es el dedup del servicio
	assert.Equal(t, "bet-42/payout", gotReq["op_path"])
	assert.Equal(t, float64(3), gotReq["key_version"])
}

func TestSignBadSignatureLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"signature_hex": "abcd"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 1).Sign(context.Background(), []byte{1}, "p", "op")
	assert.ErrorContains(t, err, "expected 65-byte signature")
}

func TestSignServiceRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"duplicate op_path"}`, http.StatusConflict)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 1).Sign(context.Background(), []byte{1}, "p", "bet-1/payout")
	assert.ErrorContains(t, err, "duplicate op_path")
}
