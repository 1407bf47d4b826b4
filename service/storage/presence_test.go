package storage

import "testing"

func TestSessionCodec(t *testing.T) {
	cases := []Session{
		{GatewayID: "gw-1", SessionID: "123456"},
		{GatewayID: "gw-east-2", SessionID: "7314989414900240384"},
	}
	for _, want := range cases {
		got := decodeSession(encodeSession(want))
		if got != want {
			t.Errorf("round trip %+v -> %q -> %+v", want, encodeSession(want), got)
		}
	}
}

func TestDecodeSessionLegacyValue(t *testing.T) {
	// Entries written before sessions carried a gateway id have no
	// separator; they decode as a bare session on the local gateway.
	got := decodeSession("oldsession")
	if got.GatewayID != "" || got.SessionID != "oldsession" {
		t.Errorf("got %+v, want bare session id", got)
	}
}

func TestPresenceKey(t *testing.T) {
	key := presenceKey("abc")
	if key != "im:presence:abc" {
		t.Errorf("key = %q", key)
	}
	if got := userFromKey(key); got != "abc" {
		t.Errorf("userFromKey = %q", got)
	}
}
