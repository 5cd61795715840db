package agent

import (
	"testing"
	"time"
)

func TestExtractDelay(t *testing.T) {
	tests := []struct {
		in          string
		wantText    string
		wantDelay   time.Duration
	}{
		{
			in:        "change the background to blue after 5 seconds",
			wantText:  "change the background to blue",
			wantDelay: 5 * time.Second,
		},
		{
			in:        "in 2 minutes set brightness to 80",
			wantText:  "set brightness to 80",
			wantDelay: 2 * time.Minute,
		},
		{
			in:        "mute the volume after 1 hour please",
			wantText:  "mute the volume please",
			wantDelay: time.Hour,
		},
		{
			in:        "set volume to 50 after 90 secs",
			wantText:  "set volume to 50",
			wantDelay: 90 * time.Second,
		},
		{
			in:        "open firefox in 1.5 minutes",
			wantText:  "open firefox",
			wantDelay: 90 * time.Second,
		},
		{
			in:        "set brightness to 50",
			wantText:  "set brightness to 50",
			wantDelay: 0,
		},
		{
			// "in" followed by a non-duration must not trigger.
			in:        "open the file in my documents folder",
			wantText:  "open the file in my documents folder",
			wantDelay: 0,
		},
		{
			in:        "turn it up after 10 minutes, thanks",
			wantText:  "turn it up, thanks",
			wantDelay: 10 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			text, delay := ExtractDelay(tt.in)
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if delay != tt.wantDelay {
				t.Errorf("delay = %v, want %v", delay, tt.wantDelay)
			}
		})
	}
}

func TestExtractDelay_OnlyFirstPhrase(t *testing.T) {
	text, delay := ExtractDelay("do it after 5 seconds not after 10 seconds")
	if delay != 5*time.Second {
		t.Errorf("delay = %v, want 5s", delay)
	}
	if text != "do it not after 10 seconds" {
		t.Errorf("text = %q", text)
	}
}
