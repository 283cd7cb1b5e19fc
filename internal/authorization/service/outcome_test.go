package service

import (
	"strings"
	"testing"
)

func TestReason_MessageDoesNotLeak(t *testing.T) {
	for _, r := range []Reason{ReasonNotFound, ReasonExpired, ReasonMismatch, Reason("other")} {
		msg := r.Message()
		if msg == "" {
			t.Errorf("%s: empty message", r)
		}
		for _, leak := range []string{"second", "minute", "expected", "code was"} {
			if strings.Contains(strings.ToLower(msg), leak) {
				t.Errorf("%s: message %q leaks %q", r, msg, leak)
			}
		}
	}
	if ReasonExpired.Message() == ReasonMismatch.Message() {
		t.Error("expired and mismatch should be distinguishable")
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateIdle:              "idle",
		StateApproved:          "approved",
		StateChallengeRequired: "challenge_required",
		StateChallengeSent:     "challenge_sent",
		StateVerified:          "verified",
		State(99):              "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestValidateCurrency(t *testing.T) {
	for _, c := range []string{"", "usd", "EUR", "Gbp", "jpy", "cad", "aud"} {
		if err := validateCurrency(c); err != nil {
			t.Errorf("validateCurrency(%q) = %v", c, err)
		}
	}
	if err := validateCurrency("chf"); err == nil {
		t.Error("chf should be rejected")
	}
}
