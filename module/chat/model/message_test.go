package model

import "testing"

func TestStatusAdvances(t *testing.T) {
	cases := []struct {
		from, next string
		want       bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusRead, true},
		{StatusDelivered, StatusRead, true},
		{StatusDelivered, StatusSent, false},
		{StatusRead, StatusDelivered, false},
		{StatusRead, StatusRead, false},
		{StatusSent, StatusSent, false},
	}
	for _, tc := range cases {
		if got := StatusAdvances(tc.from, tc.next); got != tc.want {
			t.Errorf("StatusAdvances(%q, %q) = %v, want %v", tc.from, tc.next, got, tc.want)
		}
	}
}

func TestIsDirect(t *testing.T) {
	direct := Message{SenderID: "a", ReceiverID: "b"}
	group := Message{SenderID: "a", GroupID: "g"}
	if !direct.IsDirect() {
		t.Error("direct message not recognized")
	}
	if group.IsDirect() {
		t.Error("group message treated as direct")
	}
}
