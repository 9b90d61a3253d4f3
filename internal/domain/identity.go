package domain

import (
	"strings"
	"unicode"

	apperrors "github.com/spec-kit/conversation-router/pkg/util/errorutil"
)

// ResolveConversationKey maps a channel-specific raw address to the
// tenant-scoped, channel-agnostic conversation key. Pure: same input always
// yields the same key, no I/O.
//
// Phone-based channels (whatsapp, telephony) first drop any provider suffix
// annotation ("5511999887766@c.us", "1234;line=2"), then keep digits only, so
// address variants of the same number collapse to one key. Webchat session
// tokens are opaque and pass through trimmed.
func ResolveConversationKey(channel Channel, rawAddress string) (string, error) {
	raw := strings.TrimSpace(rawAddress)

	var key string
	switch channel {
	case ChannelWhatsApp, ChannelTelephony:
		key = digitsOnly(stripSuffix(raw))
	case ChannelWebchat:
		key = raw
	default:
		return "", apperrors.NewValidationError("unsupported channel", map[string]any{"channel": string(channel)})
	}

	if key == "" {
		return "", apperrors.NewInvalidAddress(string(channel), rawAddress)
	}
	return key, nil
}

// stripSuffix drops everything from the first suffix delimiter onward.
func stripSuffix(address string) string {
	if idx := strings.IndexAny(address, "@;:"); idx >= 0 {
		return address[:idx]
	}
	return address
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
