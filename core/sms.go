package core

// TextMessage is a WhatsApp/SMS notification addressed to a normalized
// 10-digit Indian mobile number.
type TextMessage struct {
	Phone string
	Body  string
}

func (m *TextMessage) HasRecipient() bool { return m.Phone != "" }
func (m *TextMessage) HasContent() bool   { return m.Body != "" }

// E164 returns the number in international format.
func (m *TextMessage) E164() string { return "+91" + m.Phone }

// SMSService is any service that can deliver text notifications.
type SMSService interface {
	// SendMessages sends messages concurrently
	SendMessages(messages ...*TextMessage)
}
