package ntfyadapter

import "testing"

func TestAcceptMessage(t *testing.T) {
	cases := []struct {
		name string
		msg  ntfyMessage
		want bool
	}{
		{"ordinary message", ntfyMessage{Event: "message", Message: "hello"}, true},
		{"rejects non-message events", ntfyMessage{Event: "open", Message: "hello"}, false},
		{"rejects empty message", ntfyMessage{Event: "message", Message: ""}, false},
		{"rejects self-loop prefix", ntfyMessage{Event: "message", Message: "[bot] pong"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := acceptMessage(c.msg); got != c.want {
				t.Errorf("acceptMessage(%+v) = %v, want %v", c.msg, got, c.want)
			}
		})
	}
}
