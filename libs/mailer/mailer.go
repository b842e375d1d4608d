package mailer

import "errors"

// Message is a single outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// SendResult carries the provider's response for a sent message.
type SendResult struct {
	ProviderMessageID string
}

// Provider delivers messages through a specific backend.
type Provider interface {
	Name() string
	Send(msg Message) (SendResult, error)
}

// Mailer is the entry point for sending notification emails.
type Mailer struct {
	provider    Provider
	fromAddress string
}

// New creates a Mailer with the given provider and default sender address.
func New(provider Provider, fromAddress string) *Mailer {
	return &Mailer{
		provider:    provider,
		fromAddress: fromAddress,
	}
}

// Send delivers a message via the configured provider. An empty From
// falls back to the Mailer's default sender address.
func (m *Mailer) Send(msg Message) (SendResult, error) {
	if len(msg.To) == 0 {
		return SendResult{}, errors.New("mailer: message has no recipients")
	}
	if msg.From == "" {
		msg.From = m.fromAddress
	}
	return m.provider.Send(msg)
}

// ProviderName returns the name of the configured provider.
func (m *Mailer) ProviderName() string {
	return m.provider.Name()
}
