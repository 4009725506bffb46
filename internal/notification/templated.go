package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/openclass/dbans/internal/config"
)

var (
	ErrRequestCreate  = errors.New("failed to create message service request")
	ErrRequestPerform = errors.New("failed to perform message service request")
	ErrRequestEncode  = errors.New("failed to encode message payload")
	ErrMessageService = errors.New("message service rejected the message")
)

const (
	appLabel     = "discussion"
	templateName = "ban_escalation"
)

type messagePayload struct {
	AppLabel     string           `json:"app_label"`
	TemplateName string           `json:"template_name"`
	Recipient    messageRecipient `json:"recipient"`
	Context      Context          `json:"context"`
}

type messageRecipient struct {
	Address string `json:"address"`
}

// MessageClient submits escalation notices to the templated message service
// over HTTP. The service renders the named template itself from the supplied
// context.
type MessageClient struct {
	endpoint string
	authKey  string
	client   *http.Client
}

func NewMessageClient(conf config.MessageServiceConfig) *MessageClient {
	return &MessageClient{
		endpoint: conf.URL + "/api/v1/messages",
		authKey:  conf.AuthKey,
		client:   &http.Client{Timeout: conf.Timeout},
	}
}

func (c *MessageClient) Send(ctx context.Context, recipient string, notification Context) error {
	payload := messagePayload{
		AppLabel:     appLabel,
		TemplateName: templateName,
		Recipient:    messageRecipient{Address: recipient},
		Context:      notification,
	}

	body, errEncode := json.Marshal(payload)
	if errEncode != nil {
		return errors.Join(errEncode, ErrRequestEncode)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if errReq != nil {
		return errors.Join(errReq, ErrRequestCreate)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.authKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.authKey)
	}

	resp, errResp := c.client.Do(req)
	if errResp != nil {
		return errors.Join(errResp, ErrRequestPerform)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s", ErrMessageService, resp.Status)
	}

	return nil
}
