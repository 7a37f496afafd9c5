package storage

// sqlite.go: audit trail local del bot.
//
// Tres tablas:
//   - `transfers`: journal de cada transferencia emitida (hash incluido).
//     Es lo que consulta la máquina para no re-emitir un refund que ya
//     salió en un ciclo anterior.
//   - `review_flags`: bets con broadcast ambiguo u otra condición que
//     exige reconciliación manual. Mientras haya un flag abierto no se
//     emiten más transferencias automáticas para esa bet.
//   - `cycles`: resumen ligero por tick del reconciler. Siempre 1 fila.
//
// Esto NO es el ledger: el estado de las bets vive en el contrato. Aquí
// solo hay evidencia local para el operador.

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transfers (
    id          TEXT PRIMARY KEY,
    bet_id      INTEGER  NOT NULL,
    kind        TEXT     NOT NULL,
    source_path TEXT     NOT NULL,
    destination TEXT     NOT NULL,
    amount      TEXT     NOT NULL,
    tx_hash     TEXT     NOT NULL,
    sent_at     DATETIME NOT NULL,
    UNIQUE(bet_id, kind)
);

CREATE TABLE IF NOT EXISTS review_flags (
    id          TEXT PRIMARY KEY,
    bet_id      INTEGER  NOT NULL,
    reason      TEXT     NOT NULL,
    created_at  DATETIME NOT NULL,
    resolved_at DATETIME
);

CREATE TABLE IF NOT EXISTS cycles (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    ticked_at    DATETIME NOT NULL,
    unfunded     INTEGER  NOT NULL DEFAULT 0,
    live         INTEGER  NOT NULL DEFAULT 0,
    transitioned INTEGER  NOT NULL DEFAULT 0,
    retries      INTEGER  NOT NULL DEFAULT 0,
    reviews      INTEGER  NOT NULL DEFAULT 0,
    duration_ms  INTEGER  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transfers_bet ON transfers(bet_id);
CREATE INDEX IF NOT EXISTS idx_flags_bet     ON review_flags(bet_id);
CREATE INDEX IF NOT EXISTS idx_cycles_at     ON cycles(ticked_at DESC);
`

// Solo se podan los ciclos: transfers y review_flags son el audit trail
// y se conservan completos.
const retentionCycles = 30 * 24 * time.Hour

// SQLite implementa ports.AuditStore usando SQLite (pure Go, sin CGo).
type SQLite struct {
	db *sql.DB
}

// NewSQLite abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLite: apply schema: %w", err)
	}

	s := &SQLite{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveTransfer registra una transferencia emitida. La UNIQUE(bet_id, kind)
// convierte un duplicado del mismo evento en error, señal de que la
// barrera de estados falló aguas arriba.
func (s *SQLite) SaveTransfer(ctx context.Context, t domain.Transfer) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers (id, bet_id, kind, source_path, destination, amount, tx_hash, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.BetID, string(t.Kind), t.SourcePath, t.Destination,
		t.Amount.String(), t.TxHash, t.SentAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveTransfer: bet %d %s: %w", t.BetID, t.Kind, err)
	}
	return nil
}

// GetTransfers devuelve el journal de una bet en orden de emisión.
func (s *SQLite) GetTransfers(ctx context.Context, betID uint64) ([]domain.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bet_id, kind, source_path, destination, amount, tx_hash, sent_at
		FROM transfers
		WHERE bet_id = ?
		ORDER BY sent_at ASC`, betID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTransfers: query: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		var kind, amount, sentAt string
		if err := rows.Scan(&t.ID, &t.BetID, &kind, &t.SourcePath, &t.Destination, &amount, &t.TxHash, &sentAt); err != nil {
			return nil, fmt.Errorf("storage.GetTransfers: scan row: %w", err)
		}
		t.Kind = domain.TransferKind(kind)
		t.Amount, _ = new(big.Int).SetString(amount, 10)
		t.SentAt, _ = time.Parse(time.RFC3339, sentAt)
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// FlagForReview marca una bet para reconciliación manual.
func (s *SQLite) FlagForReview(ctx context.Context, betID uint64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_flags (id, bet_id, reason, created_at)
		VALUES (?, ?, ?, ?)`,
		uuid.New().String(), betID, reason, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.FlagForReview: bet %d: %w", betID, err)
	}
	return nil
}

// HasOpenReview devuelve true si la bet tiene algún flag sin resolver.
func (s *SQLite) HasOpenReview(ctx context.Context, betID uint64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_flags WHERE bet_id = ? AND resolved_at IS NULL`,
		betID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("storage.HasOpenReview: bet %d: %w", betID, err)
	}
	return count > 0, nil
}

// ResolveReview cierra todos los flags abiertos de una bet. Lo usa el
// operador tras reconciliar a mano; expuesto también para tests.
func (s *SQLite) ResolveReview(ctx context.Context, betID uint64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE review_flags SET resolved_at = ? WHERE bet_id = ? AND resolved_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), betID,
	)
	if err != nil {
		return fmt.Errorf("storage.ResolveReview: bet %d: %w", betID, err)
	}
	return nil
}

// SaveCycle registra el resumen de un tick.
func (s *SQLite) SaveCycle(ctx context.Context, c domain.CycleSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles (ticked_at, unfunded, live, transitioned, retries, reviews, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.TickedAt.UTC().Format(time.RFC3339), c.Unfunded, c.Live, c.Transitioned, c.Retries, c.Reviews,
		c.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: %w", err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// pruneOld elimina resúmenes de ciclo antiguos para mantener la DB ligera.
func (s *SQLite) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionCycles).Format(time.RFC3339)
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE ticked_at < ?`, cutoff)
}
