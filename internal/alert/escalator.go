package alert

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/medora-health/remindd/internal/model"
	myopenai "github.com/medora-health/remindd/internal/openai"
	"github.com/medora-health/remindd/internal/twilio"
)

// Escalator is the fallback notifier: it surfaces the "calling contact"
// notice and, when a Twilio client and contact number are available,
// delivers the escalation over WhatsApp and a voice call. Delivery runs in
// the background; failures are logged, never propagated.
type Escalator struct {
	twilio *twilio.Client
	openAI *myopenai.Client
	logger *log.Logger
}

func NewEscalator(twilioClient *twilio.Client, openAIClient *myopenai.Client, logger *log.Logger) *Escalator {
	return &Escalator{
		twilio: twilioClient,
		openAI: openAIClient,
		logger: logger,
	}
}

// CallingNotice implements scheduler.Notifier.
func (e *Escalator) CallingNotice(userID string, r model.Reminder) {
	contact := r.Contact
	if contact == "" {
		e.logger.Printf("notice: reminder %q unacknowledged, no contact on file for user %s", r.Name, userID)
		return
	}
	e.logger.Printf("notice: calling %s about unacknowledged reminder %q", contact, r.Name)

	if e.twilio == nil {
		return
	}
	go e.deliver(contact, r)
}

func (e *Escalator) deliver(contact string, r model.Reminder) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	script := e.callScript(ctx, r.Name)

	if err := e.twilio.SendWhatsAppMessage(contact, script); err != nil {
		e.logger.Printf("escalation: whatsapp to %s: %v", contact, err)
	}
	if err := e.twilio.PlaceCall(contact, script); err != nil {
		e.logger.Printf("escalation: call to %s: %v", contact, err)
	}
}

func (e *Escalator) callScript(ctx context.Context, reminderName string) string {
	if e.openAI == nil {
		return fmt.Sprintf("This is Medora. A reminder named %s was not acknowledged.", reminderName)
	}
	script, err := e.openAI.CallScript(ctx, reminderName)
	if err != nil {
		e.logger.Printf("escalation: call script: %v", err)
	}
	return script
}
