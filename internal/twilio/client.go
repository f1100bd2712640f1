package twilio

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Client wraps the Twilio operations the escalation path needs: a WhatsApp
// notice and an outbound voice call to the reminder contact.
type Client struct {
	client       *twilio.RestClient
	fromWhatsApp string
	fromVoice    string
}

// New creates a Twilio client bound to the configured sender numbers.
func New(accountSID, authToken, fromWhatsApp, fromVoice string) *Client {
	return &Client{
		client:       twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken}),
		fromWhatsApp: fromWhatsApp,
		fromVoice:    fromVoice,
	}
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio's API.
func (c *Client) SendWhatsAppMessage(to, body string) error {
	if c.client == nil {
		return fmt.Errorf("twilio client not initialised")
	}

	sender := normalizeWhatsAppAddress(c.fromWhatsApp)
	if sender == "" {
		return fmt.Errorf("twilio sender WhatsApp number is not configured")
	}

	recipient := normalizeWhatsAppAddress(to)
	if recipient == "" {
		return fmt.Errorf("recipient number missing or invalid")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(sender)
	params.SetBody(body)

	if _, err := c.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send message error: %w", err)
	}
	return nil
}

// PlaceCall dials the contact and speaks the given script.
func (c *Client) PlaceCall(to, script string) error {
	if c.client == nil {
		return fmt.Errorf("twilio client not initialised")
	}
	if c.fromVoice == "" {
		return fmt.Errorf("twilio voice number is not configured")
	}

	recipient := normalizePhoneNumber(to)
	if recipient == "" {
		return fmt.Errorf("recipient number missing or invalid")
	}

	twiml, err := sayTwiml(script)
	if err != nil {
		return fmt.Errorf("twilio call script: %w", err)
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(recipient)
	params.SetFrom(normalizePhoneNumber(c.fromVoice))
	params.SetTwiml(twiml)

	if _, err := c.client.Api.CreateCall(params); err != nil {
		return fmt.Errorf("twilio place call error: %w", err)
	}
	return nil
}

func sayTwiml(script string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("<Response><Say>")
	if err := xml.EscapeText(&buf, []byte(script)); err != nil {
		return "", err
	}
	buf.WriteString("</Say></Response>")
	return buf.String(), nil
}

func normalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}

func normalizePhoneNumber(number string) string {
	trimmed := strings.TrimSpace(strings.TrimPrefix(number, "whatsapp:"))
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "+") {
		return trimmed
	}
	return "+" + trimmed
}
