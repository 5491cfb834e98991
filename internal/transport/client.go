package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxSendRetries = 3

// Client is the REST client over the chat decryption daemon's surface
// (spec §4.7, §6). Every method is a thin pass-through; retry policy
// lives only in Send, per spec.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindPermanent, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindPermanent, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransient, Err: err}
	}
	if resp.StatusCode >= 500 {
		return &Error{Kind: KindTransient, Err: fmt.Errorf("status %d: %s", resp.StatusCode, raw)}
	}
	if resp.StatusCode >= 300 {
		return &Error{Kind: KindPermanent, Err: fmt.Errorf("status %d: %s", resp.StatusCode, raw)}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Kind: KindPermanent, Err: err}
		}
	}
	return nil
}

// Receive polls for pending messages addressed to number, converting
// each into an IncomingMessage. Messages without a text payload (pure
// receipts, typing indicators) are skipped.
func (c *Client) Receive(ctx context.Context, number string) ([]IncomingMessage, error) {
	var wire []struct {
		Envelope struct {
			Source    string `json:"source"`
			Timestamp int64  `json:"timestamp"`
			DataMessage *struct {
				Message     string `json:"message"`
				GroupInfo   *struct {
					GroupID string `json:"groupId"`
				} `json:"groupInfo"`
			} `json:"dataMessage"`
		} `json:"envelope"`
	}

	if err := c.do(ctx, http.MethodGet, "/v1/receive/"+url.PathEscape(number), nil, &wire); err != nil {
		return nil, err
	}

	out := make([]IncomingMessage, 0, len(wire))
	for _, item := range wire {
		if item.Envelope.DataMessage == nil || item.Envelope.DataMessage.Message == "" {
			continue
		}
		msg := IncomingMessage{
			Source:    item.Envelope.Source,
			Text:      item.Envelope.DataMessage.Message,
			Timestamp: time.UnixMilli(item.Envelope.Timestamp).UTC(),
		}
		if item.Envelope.DataMessage.GroupInfo != nil {
			msg.IsGroup = true
			msg.GroupID = item.Envelope.DataMessage.GroupInfo.GroupID
		}
		out = append(out, msg)
	}
	return out, nil
}

// Send delivers text to recipient (direct or group), retrying transient
// failures with exponential backoff up to maxSendRetries (spec §4.7).
func (c *Client) Send(ctx context.Context, number, recipient, text string, isGroup bool) error {
	body := map[string]interface{}{"message": text, "number": number}
	if isGroup {
		body["group_id"] = recipient
	} else {
		body["recipients"] = []string{recipient}
	}

	var lastErr error
	for attempt := 0; attempt <= maxSendRetries; attempt++ {
		err := c.do(ctx, http.MethodPost, "/v2/send/"+url.PathEscape(number), body, nil)
		if err == nil {
			return nil
		}
		lastErr = err

		var terr *Error
		if !asTransportError(err, &terr) || terr.Kind != KindTransient || attempt == maxSendRetries {
			return err
		}
		delay := time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
		select {
		case <-ctx.Done():
			return &Error{Kind: KindTransient, Err: ctx.Err()}
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil) == nil
}

func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var numbers []string
	if err := c.do(ctx, http.MethodGet, "/v1/accounts", nil, &numbers); err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, Account{Number: n})
	}
	return out, nil
}

func (c *Client) RegisterNumber(ctx context.Context, number string, useVoice bool, captcha string) error {
	body := map[string]interface{}{"use_voice": useVoice}
	if captcha != "" {
		body["captcha"] = captcha
	}
	return c.do(ctx, http.MethodPost, "/v1/register/"+url.PathEscape(number), body, nil)
}

func (c *Client) VerifyCode(ctx context.Context, number, code, pin string) error {
	body := map[string]interface{}{}
	if pin != "" {
		body["pin"] = pin
	}
	path := fmt.Sprintf("/v1/register/%s/verify/%s", url.PathEscape(number), url.PathEscape(code))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) SetProfile(ctx context.Context, number, name, about string) error {
	body := map[string]interface{}{"name": name, "about": about}
	return c.do(ctx, http.MethodPut, "/v1/profiles/"+url.PathEscape(number), body, nil)
}

func (c *Client) SetUsername(ctx context.Context, number, username string) error {
	body := map[string]interface{}{"username": username}
	return c.do(ctx, http.MethodPost, "/v1/accounts/"+url.PathEscape(number)+"/username", body, nil)
}

func (c *Client) LinkDeviceQR(ctx context.Context) (string, error) {
	var wire struct {
		QRCodeURL string `json:"qrCodeUrl"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/qrcodelink", nil, &wire); err != nil {
		return "", err
	}
	return wire.QRCodeURL, nil
}

func asTransportError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
