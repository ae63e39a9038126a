// Package smssvc delivers text notifications (WhatsApp/SMS fallback).
package smssvc

import (
	"log"
	"sync"

	"github.com/kitabu/kitabu/core"
)

var (
	SentMessages = make([]core.TextMessage, 0)
	mu           sync.Mutex
)

type consoleService struct {
	disableOutput bool
}

var _ core.SMSService = (*consoleService)(nil)

func NewConsoleService() core.SMSService {
	return &consoleService{}
}

func (svc consoleService) SendMessages(messages ...*core.TextMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.TextMessage) {
	if !msg.HasRecipient() || !msg.HasContent() {
		return
	}
	if !svc.disableOutput {
		log.Printf("SMS to %s: %s", msg.E164(), msg.Body)
	}
	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
}

type consoleServiceMock struct {
	consoleService
}

func NewConsoleServiceMock() core.SMSService {
	return &consoleServiceMock{consoleService{disableOutput: true}}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.TextMessage) {
	for _, msg := range messages {
		// run synchronously
		svc.sendMessage(msg)
	}
}

// ClearSentMessages resets the captured outbox between tests.
func ClearSentMessages() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}
