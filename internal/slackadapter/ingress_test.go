package slackadapter

import "testing"

func TestAcceptMessage(t *testing.T) {
	cases := []struct {
		name string
		ev   slackMessageEvent
		want bool
	}{
		{"ordinary message", slackMessageEvent{Type: "message", Text: "hi"}, true},
		{"rejects bot_id", slackMessageEvent{Type: "message", Text: "hi", BotID: "B1"}, false},
		{"rejects subtype", slackMessageEvent{Type: "message", Text: "hi", Subtype: "bot_message"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := acceptMessage(c.ev); got != c.want {
				t.Errorf("acceptMessage(%+v) = %v, want %v", c.ev, got, c.want)
			}
		})
	}
}
