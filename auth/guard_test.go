package auth

import "testing"

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name   string
		id     Identity
		target string
		want   Decision
	}{
		{"anonymous", Identity{}, "alice", Deny},
		{"anonymous on empty target", Identity{}, "", Deny},
		{"owner", Identity{Username: "alice"}, "alice", Allow},
		{"other user", Identity{Username: "bob"}, "alice", Deny},
		{"admin on other user", Identity{Username: "admin", IsAdmin: true}, "alice", Allow},
		{"admin on self", Identity{Username: "admin", IsAdmin: true}, "admin", Allow},
		{"case differs", Identity{Username: "Alice"}, "alice", Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.id, tt.target); got != tt.want {
				t.Errorf("Authorize(%+v, %q) = %v, want %v", tt.id, tt.target, got, tt.want)
			}
		})
	}
}

func TestDecisionString(t *testing.T) {
	if Allow.String() != "allow" || Deny.String() != "deny" {
		t.Errorf("Unexpected decision strings: %s %s", Allow, Deny)
	}
}
