package agent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// delayRe matches a deferral phrase like "after 5 seconds" or "in 2 minutes".
// The phrase is interpreted by the pipeline, not the model, so it is stripped
// from the utterance before encoding.
var delayRe = regexp.MustCompile(`(?i)\b(?:after|in)\s+(\d+(?:\.\d+)?)\s+(seconds?|secs?|minutes?|mins?|hours?|hrs?)\b`)

var unitSeconds = map[string]float64{
	"second": 1, "sec": 1,
	"minute": 60, "min": 60,
	"hour": 3600, "hr": 3600,
}

// ExtractDelay finds the first deferral phrase in text and returns the
// utterance with the phrase removed plus the requested delay. Text without a
// deferral phrase is returned unchanged with a zero delay.
func ExtractDelay(text string) (string, time.Duration) {
	m := delayRe.FindStringSubmatchIndex(text)
	if m == nil {
		return text, 0
	}

	amount, err := strconv.ParseFloat(text[m[2]:m[3]], 64)
	if err != nil {
		return text, 0
	}
	unit := strings.ToLower(strings.TrimSuffix(text[m[4]:m[5]], "s"))
	secs, ok := unitSeconds[unit]
	if !ok {
		return text, 0
	}

	cleaned := text[:m[0]] + text[m[1]:]
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.ReplaceAll(cleaned, " ,", ",")
	cleaned = strings.ReplaceAll(cleaned, " .", ".")
	cleaned = strings.TrimRight(cleaned, " ,.")

	return cleaned, time.Duration(amount * secs * float64(time.Second))
}
