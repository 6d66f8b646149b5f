package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNtfy_Send(t *testing.T) {
	t.Parallel()

	var gotPath, gotTitle, gotPriority, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer srv.Close()

	n := NewNtfyNotifier(srv.URL, "my-topic")
	err := n.Send(context.Background(), Message{
		Title: "Parking Available!",
		Body:  "PALISADES 2026-02-21: Covered ($25.00)",
	})
	require.NoError(t, err)

	assert.Equal(t, "/my-topic", gotPath)
	assert.Equal(t, "Parking Available!", gotTitle)
	assert.Equal(t, "high", gotPriority)
	assert.Equal(t, "PALISADES 2026-02-21: Covered ($25.00)", gotBody)
}

func TestNtfy_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewNtfyNotifier(srv.URL, "my-topic")
	err := n.Send(context.Background(), Message{Title: "t", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.NotErrorIs(t, err, ErrNotConfigured)
}

func TestNtfy_SkipsWithoutTopic(t *testing.T) {
	t.Parallel()

	n := NewNtfyNotifier("", "")
	err := n.Send(context.Background(), Message{Title: "t", Body: "b"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEmail_SkipsWhenConfigIncomplete(t *testing.T) {
	t.Parallel()

	n := NewEmailNotifier(SMTPConfig{Host: "smtp.example.com", User: "u"})
	err := n.Send(context.Background(), Message{Title: "t", Body: "b"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func completeSMTP() SMTPConfig {
	return SMTPConfig{
		Host:     "smtp.example.com",
		User:     "user",
		Password: "secret",
		From:     "from@example.com",
		To:       "to@example.com",
	}
}

func TestEmail_SubmitsToConfiguredRecipient(t *testing.T) {
	t.Parallel()

	n := NewEmailNotifier(completeSMTP())

	var gotTo string
	var gotMsg Message
	n.send = func(_ SMTPConfig, to string, msg Message) error {
		gotTo = to
		gotMsg = msg
		return nil
	}

	msg := Message{Title: "Parking Available!", Body: "details"}
	require.NoError(t, n.Send(context.Background(), msg))
	assert.Equal(t, "to@example.com", gotTo)
	assert.Equal(t, msg, gotMsg)
}

func TestEmail_DefaultsSubmissionPort(t *testing.T) {
	t.Parallel()

	n := NewEmailNotifier(completeSMTP())
	assert.Equal(t, 587, n.cfg.Port)
}

func TestEmail_WrapsSubmitError(t *testing.T) {
	t.Parallel()

	n := NewEmailNotifier(completeSMTP())
	n.send = func(SMTPConfig, string, Message) error {
		return errors.New("535 auth failed")
	}
	err := n.Send(context.Background(), Message{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp submit")
}

func TestGatewayAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		phone   string
		carrier string
		want    string
	}{
		{"5551234567", "verizon", "5551234567@vtext.com"},
		{"(555) 123-4567", "att", "5551234567@txt.att.net"},
		{"555.123.4567", "TMobile", "5551234567@tmomail.net"},
		{"5551234567", "google_fi", "5551234567@msg.fi.google.com"},
	}
	for _, tt := range tests {
		got, err := GatewayAddress(tt.phone, tt.carrier)
		require.NoError(t, err, "carrier %s", tt.carrier)
		assert.Equal(t, tt.want, got)
	}
}

func TestGatewayAddress_UnknownCarrierEnumeratesSupported(t *testing.T) {
	t.Parallel()

	_, err := GatewayAddress("5551234567", "rogers")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCarrier)
	for _, carrier := range SupportedCarriers() {
		assert.Contains(t, err.Error(), carrier)
	}
}

func TestGatewayAddress_NoDigits(t *testing.T) {
	t.Parallel()

	_, err := GatewayAddress("call me", "verizon")
	assert.Error(t, err)
}

func TestSMS_TruncatesBodyAndUsesGatewayAddress(t *testing.T) {
	t.Parallel()

	email := NewEmailNotifier(completeSMTP())
	var gotTo string
	var gotMsg Message
	email.send = func(_ SMTPConfig, to string, msg Message) error {
		gotTo = to
		gotMsg = msg
		return nil
	}

	n := NewSMSNotifier("(555) 123-4567", "verizon", email)
	long := strings.Repeat("PALISADES 2026-02-21 available. ", 10)
	require.NoError(t, n.Send(context.Background(), Message{Title: "t", Body: long}))

	assert.Equal(t, "5551234567@vtext.com", gotTo)
	assert.Len(t, gotMsg.Body, 140)
	assert.Equal(t, long[:140], gotMsg.Body)
}

func TestSMS_TruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	email := NewEmailNotifier(completeSMTP())
	var gotMsg Message
	email.send = func(_ SMTPConfig, _ string, msg Message) error {
		gotMsg = msg
		return nil
	}

	// Three-byte runes never land a boundary exactly at 140 bytes, so a
	// byte slice would cut one in half.
	long := strings.Repeat("⛷", 60)
	n := NewSMSNotifier("5551234567", "verizon", email)
	require.NoError(t, n.Send(context.Background(), Message{Title: "t", Body: long}))

	assert.True(t, utf8.ValidString(gotMsg.Body), "truncation must not split a rune")
	assert.LessOrEqual(t, len(gotMsg.Body), 140)
	assert.Equal(t, strings.Repeat("⛷", 46), gotMsg.Body)
}

func TestSMS_SkipsWithoutPhoneOrCarrier(t *testing.T) {
	t.Parallel()

	n := NewSMSNotifier("", "verizon", NewEmailNotifier(completeSMTP()))
	assert.ErrorIs(t, n.Send(context.Background(), Message{}), ErrNotConfigured)

	n = NewSMSNotifier("5551234567", "", NewEmailNotifier(completeSMTP()))
	assert.ErrorIs(t, n.Send(context.Background(), Message{}), ErrNotConfigured)
}

func TestSMS_UnknownCarrierIsNotASkip(t *testing.T) {
	t.Parallel()

	n := NewSMSNotifier("5551234567", "rogers", NewEmailNotifier(completeSMTP()))
	err := n.Send(context.Background(), Message{Title: "t", Body: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCarrier)
	assert.NotErrorIs(t, err, ErrNotConfigured)
}

func TestDesktop_NeverFails(t *testing.T) {
	t.Parallel()

	var bell bytes.Buffer
	n := NewDesktopNotifier(quietLogger())
	n.popup = func(string, string) error { return errors.New("no display") }
	n.bell = &bell

	err := n.Send(context.Background(), Message{Title: "t", Body: "b"})
	assert.NoError(t, err)
	assert.Equal(t, "\a", bell.String(), "failed popup degrades to the terminal bell")
}

func TestDesktop_NoBellOnSuccess(t *testing.T) {
	t.Parallel()

	var bell bytes.Buffer
	n := NewDesktopNotifier(quietLogger())
	n.popup = func(string, string) error { return nil }
	n.bell = &bell

	require.NoError(t, n.Send(context.Background(), Message{Title: "t"}))
	assert.Empty(t, bell.String())
}
