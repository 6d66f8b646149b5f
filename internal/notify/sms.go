package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// smsGateways maps US carrier names to their email-to-SMS address suffixes.
var smsGateways = map[string]string{
	"att":        "@txt.att.net",
	"tmobile":    "@tmomail.net",
	"verizon":    "@vtext.com",
	"sprint":     "@messaging.sprintpcs.com",
	"uscellular": "@email.uscc.net",
	"cricket":    "@sms.cricketwireless.net",
	"boost":      "@sms.myboostmobile.com",
	"metro":      "@mymetropcs.com",
	"mint":       "@tmomail.net",
	"google_fi":  "@msg.fi.google.com",
	"xfinity":    "@vtext.com",
	"visible":    "@vtext.com",
}

// smsMaxLen is the classic single-segment SMS budget the gateways enforce.
const smsMaxLen = 140

// ErrUnknownCarrier marks an unrecognized SMS carrier name. This is a
// configuration error, not a transient delivery failure.
var ErrUnknownCarrier = errors.New("unknown SMS carrier")

// SupportedCarriers lists the recognized carrier names, sorted.
func SupportedCarriers() []string {
	names := make([]string, 0, len(smsGateways))
	for name := range smsGateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GatewayAddress resolves a phone number and carrier name to the carrier's
// email-to-SMS address. Non-digits in the phone number are stripped.
func GatewayAddress(phone, carrier string) (string, error) {
	suffix, ok := smsGateways[strings.ToLower(carrier)]
	if !ok {
		return "", fmt.Errorf(
			"%w %q (supported: %s)",
			ErrUnknownCarrier, carrier, strings.Join(SupportedCarriers(), ", "),
		)
	}

	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return "", fmt.Errorf("phone number %q contains no digits", phone)
	}

	return digits.String() + suffix, nil
}

// SMSNotifier delivers through a carrier email-to-SMS gateway, reusing the
// email channel's SMTP path with the resolved gateway address.
type SMSNotifier struct {
	phone   string
	carrier string
	email   *EmailNotifier
}

// NewSMSNotifier creates the SMS channel on top of an email channel.
func NewSMSNotifier(phone, carrier string, email *EmailNotifier) *SMSNotifier {
	return &SMSNotifier{phone: phone, carrier: carrier, email: email}
}

// Name implements Notifier.
func (n *SMSNotifier) Name() string { return "sms" }

// Send resolves the gateway address, truncates the body to the SMS budget,
// and submits via SMTP. It fails the same ways email fails.
func (n *SMSNotifier) Send(_ context.Context, msg Message) error {
	if n.phone == "" || n.carrier == "" {
		return fmt.Errorf("%w: missing phone or carrier (set SMS_PHONE and SMS_CARRIER)", ErrNotConfigured)
	}
	if !n.email.cfg.Complete() {
		return fmt.Errorf(
			"%w: missing SMTP settings (need host, user, password, from, to)",
			ErrNotConfigured,
		)
	}

	addr, err := GatewayAddress(n.phone, n.carrier)
	if err != nil {
		return err
	}

	if len(msg.Body) > smsMaxLen {
		// Back up to a rune boundary so a multi-byte character is never
		// split at the cut.
		cut := smsMaxLen
		for cut > 0 && !utf8.RuneStart(msg.Body[cut]) {
			cut--
		}
		msg.Body = msg.Body[:cut]
	}

	if err := n.email.send(n.email.cfg, addr, msg); err != nil {
		return fmt.Errorf("smtp submit: %w", err)
	}
	return nil
}
