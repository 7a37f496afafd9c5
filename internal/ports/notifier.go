package ports

import "context"

// Notifier publica mensajes hacia el canal social. Fire-and-forget: los
// fallos se loguean y jamás bloquean una transición de estado.
type Notifier interface {
	Post(ctx context.Context, msg string) error
}
