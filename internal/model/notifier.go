package model

// Notifier delivers an alert. The body is HTML.
type Notifier interface {
	Send(subject, body string) error
}
