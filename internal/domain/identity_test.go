package domain

import (
	"testing"

	apperrors "github.com/spec-kit/conversation-router/pkg/util/errorutil"
)

func TestResolveConversationKey(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		raw     string
		want    string
	}{
		{"whatsapp plain number", ChannelWhatsApp, "5511999887766", "5511999887766"},
		{"whatsapp provider suffix", ChannelWhatsApp, "5511999887766@c.us", "5511999887766"},
		{"whatsapp semicolon annotation", ChannelWhatsApp, "5511999887766;phone=mobile", "5511999887766"},
		{"whatsapp colon annotation", ChannelWhatsApp, "5511999887766:2", "5511999887766"},
		{"whatsapp formatted number", ChannelWhatsApp, "+55 (11) 99988-7766", "5511999887766"},
		{"whatsapp surrounding whitespace", ChannelWhatsApp, "  5511999887766@c.us ", "5511999887766"},
		{"telephony sip-style address", ChannelTelephony, "+15550100;line=2", "15550100"},
		{"webchat opaque token", ChannelWebchat, "sess-A1b2C3", "sess-A1b2C3"},
		{"webchat token trimmed only", ChannelWebchat, "  sess-A1b2C3  ", "sess-A1b2C3"},
		{"webchat token keeps symbols", ChannelWebchat, "sess@A1:b2", "sess@A1:b2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveConversationKey(tt.channel, tt.raw)
			if err != nil {
				t.Fatalf("ResolveConversationKey(%q, %q): %v", tt.channel, tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveConversationKeyVariantsCollapse(t *testing.T) {
	variants := []string{
		"5511999887766",
		"5511999887766@c.us",
		"5511999887766@s.whatsapp.net",
		"+55 11 99988-7766;mobile",
	}
	for _, raw := range variants {
		got, err := ResolveConversationKey(ChannelWhatsApp, raw)
		if err != nil {
			t.Fatalf("ResolveConversationKey(%q): %v", raw, err)
		}
		if got != "5511999887766" {
			t.Errorf("variant %q resolved to %q, want 5511999887766", raw, got)
		}
	}
}

func TestResolveConversationKeyRejects(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		raw     string
	}{
		{"empty whatsapp address", ChannelWhatsApp, ""},
		{"suffix-only address", ChannelWhatsApp, "@c.us"},
		{"no digits at all", ChannelTelephony, "anonymous"},
		{"blank webchat session", ChannelWebchat, "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveConversationKey(tt.channel, tt.raw)
			if !apperrors.IsCode(err, "INVALID_ADDRESS") {
				t.Fatalf("err = %v, want INVALID_ADDRESS", err)
			}
		})
	}
}

func TestResolveConversationKeyUnknownChannel(t *testing.T) {
	_, err := ResolveConversationKey(Channel("carrier-pigeon"), "5511999887766")
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}
}
