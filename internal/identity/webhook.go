// Package identity integrates with the external identity provider: it
// verifies signed webhook deliveries and exposes a small client for the
// provider's management API.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType is the closed set of webhook events this service reacts to.
// Anything else is acknowledged and skipped.
type EventType string

const (
	EventUserCreated EventType = "user.created"
	EventUserUpdated EventType = "user.updated"
	EventUserDeleted EventType = "user.deleted"
)

// Known reports whether the event type is one this service handles.
func (t EventType) Known() bool {
	switch t {
	case EventUserCreated, EventUserUpdated, EventUserDeleted:
		return true
	}
	return false
}

// Event is a decoded webhook delivery.
type Event struct {
	Type EventType `json:"type"`
	Data EventUser `json:"data"`
}

// EventUser is the user object embedded in provider events. The provider
// sends every email address on the account; PrimaryEmail picks the one worth
// mirroring.
type EventUser struct {
	ID             string         `json:"id"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
	FirstName      *string        `json:"first_name"`
	LastName       *string        `json:"last_name"`
	ImageURL       *string        `json:"image_url"`
}

type EmailAddress struct {
	EmailAddress string `json:"email_address"`
	Verification *struct {
		Status string `json:"status"`
	} `json:"verification"`
}

// PrimaryEmail returns the first verified address, falling back to the first
// address of any kind, or "" when the account has none.
func (u EventUser) PrimaryEmail() string {
	for _, a := range u.EmailAddresses {
		if a.Verification != nil && a.Verification.Status == "verified" {
			return a.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// ParseEvent decodes a verified webhook payload.
func ParseEvent(payload []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("identity: decoding event: %w", err)
	}
	if evt.Type == "" {
		return nil, errors.New("identity: event has no type")
	}
	return &evt, nil
}

// WebhookHeaders are the per-delivery signature headers set by the provider.
type WebhookHeaders struct {
	ID        string // webhook-id / svix-id
	Timestamp string // unix seconds
	Signature string // space-separated "v1,<base64>" entries
}

// webhookTolerance bounds how far a delivery timestamp may drift from the
// server clock before the delivery is rejected as a possible replay.
const webhookTolerance = 5 * time.Minute

// VerifyWebhook checks a delivery against the shared webhook secret.
//
// The signed content is "{id}.{timestamp}.{payload}" and the signature is the
// base64 HMAC-SHA256 under the secret (the part after the "whsec_" prefix,
// base64-decoded). The signature header may list several versioned
// signatures; verification passes if any "v1" entry matches.
func VerifyWebhook(secret string, h WebhookHeaders, payload []byte, now time.Time) error {
	if h.ID == "" || h.Timestamp == "" || h.Signature == "" {
		return errors.New("identity: missing webhook signature headers")
	}

	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("identity: invalid webhook timestamp: %w", err)
	}
	drift := now.Sub(time.Unix(ts, 0))
	if drift > webhookTolerance || drift < -webhookTolerance {
		return errors.New("identity: webhook timestamp outside tolerance")
	}

	key, err := webhookKey(secret)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", h.ID, h.Timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, part := range strings.Fields(h.Signature) {
		version, sig, found := strings.Cut(part, ",")
		if !found || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}

	return errors.New("identity: webhook signature mismatch")
}

func webhookKey(secret string) ([]byte, error) {
	raw := strings.TrimPrefix(secret, "whsec_")
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("identity: decoding webhook secret: %w", err)
	}
	return key, nil
}
