package notify

import (
	"fmt"
	"time"
)

func magicLinkEmailTemplate(magicURL, appName string, ttl time.Duration) (subject, body string) {
	subject = fmt.Sprintf("Your Magic Link - %s", appName)
	body = fmt.Sprintf(`Hello,

Click the link below to verify your email and log in:

%s

This link will expire in %s.

If you didn't request this, please ignore this email.
`, magicURL, humanDuration(ttl))
	return subject, body
}

func humanDuration(d time.Duration) string {
	minutes := int(d.Round(time.Minute).Minutes())
	switch {
	case minutes <= 1:
		return "1 minute"
	case minutes%60 == 0 && minutes >= 120:
		return fmt.Sprintf("%d hours", minutes/60)
	case minutes == 60:
		return "1 hour"
	default:
		return fmt.Sprintf("%d minutes", minutes)
	}
}
