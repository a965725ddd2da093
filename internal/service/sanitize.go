package service

import "strings"

var emphasisStripper = strings.NewReplacer("*", "", "#", "", "_", "", "`", "")

// Sanitize strips markdown emphasis that screen readers read aloud, collapses
// runs of spaces and trims the result.
func Sanitize(s string) string {
	s = emphasisStripper.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
