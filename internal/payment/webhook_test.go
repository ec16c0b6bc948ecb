package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test"

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()

	tests := []struct {
		name     string
		header   string
		at       time.Time
		expected error
	}{
		{name: "valid", header: SignPayload(payload, webhookSecret, now)},
		{name: "missing header", header: "", expected: ErrMissingSignature},
		{name: "garbage header", header: "not-a-signature", expected: ErrMissingSignature},
		{name: "wrong secret", header: SignPayload(payload, "whsec_other", now), expected: ErrBadSignature},
		{name: "too old", header: SignPayload(payload, webhookSecret, now.Add(-6*time.Minute)), expected: ErrStaleTimestamp},
		{name: "from the future", header: SignPayload(payload, webhookSecret, now.Add(6*time.Minute)), expected: ErrStaleTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(payload, tt.header, webhookSecret, now)
			if tt.expected != nil {
				assert.ErrorIs(t, err, tt.expected)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := SignPayload(payload, webhookSecret, time.Now())

	err := VerifySignature([]byte(`{"id":"evt_2"}`), header, webhookSecret, time.Now())
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifySignatureAcceptsExtraSignatures(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	// Stripe sends multiple v1 entries during secret rollover; one valid
	// signature is enough.
	valid := SignPayload(payload, webhookSecret, now)
	header := valid + ",v1=deadbeef"

	assert.NoError(t, VerifySignature(payload, header, webhookSecret, now))
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "status": "complete", "metadata": {"payment_id": "abc"}}}
	}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "checkout.session.completed", event.Type)

	session, err := event.ParseSession()
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "abc", session.Metadata.PaymentID)
}

func TestParseEventRejectsIncomplete(t *testing.T) {
	_, err := ParseEvent([]byte(`{"id":"evt_1"}`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`not json`))
	assert.Error(t, err)

	event, err := ParseEvent([]byte(`{"id":"evt_1","type":"x","data":{"object":{}}}`))
	require.NoError(t, err)
	_, err = event.ParseSession()
	assert.Error(t, err)
}
