package signaling

import "testing"

func TestURLFromOrigin(t *testing.T) {
	cases := []struct {
		origin string
		want   string
	}{
		{"https://voice.example.com", "wss://voice.example.com/ws"},
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://voice.example.com/rooms/1?x=1", "wss://voice.example.com/ws"},
		{"ws://localhost:8080", "ws://localhost:8080/ws"},
	}
	for _, tc := range cases {
		got, err := URLFromOrigin(tc.origin)
		if err != nil {
			t.Fatalf("URLFromOrigin(%q): %v", tc.origin, err)
		}
		if got != tc.want {
			t.Fatalf("URLFromOrigin(%q) = %q, want %q", tc.origin, got, tc.want)
		}
	}
}

func TestURLFromOrigin_Rejects(t *testing.T) {
	for _, origin := range []string{"ftp://x", "not a url at all\x7f", "http://"} {
		if _, err := URLFromOrigin(origin); err == nil {
			t.Fatalf("expected rejection of %q", origin)
		}
	}
}
