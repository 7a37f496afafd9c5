package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

// Console implementa ports.Notifier escribiendo a un io.Writer. Es el
// canal por defecto cuando Telegram no está configurado, y el formateador
// del reporte de operador (-status).
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Post implementa ports.Notifier.
func (c *Console) Post(_ context.Context, msg string) error {
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", time.Now().Format("15:04:05"), msg)
	return err
}

// PrintBets imprime la tabla de bets del ledger para el operador.
func (c *Console) PrintBets(bets []domain.Bet, now time.Time) {
	if len(bets) == 0 {
		fmt.Fprintln(c.out, "no bets in ledger")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Challenger", "Challenged", "Stake", "Status", "Age", "Deadline", "Criteria")

	for _, b := range bets {
		table.Append(
			fmt.Sprintf("%d", b.ID),
			b.Challenger,
			b.Challenged,
			b.Amount.String(),
			string(b.Status),
			b.StatusAge(now).Round(time.Minute).String(),
			b.Deadline().Format("2006-01-02 15:04"),
			truncate(b.ResolutionCriteria, 40),
		)
	}

	table.Render()
	fmt.Fprintf(c.out, "  %d bets | Age = tiempo en el estado actual\n", len(bets))
}
