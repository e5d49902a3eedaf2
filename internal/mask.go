package internal

import "strings"

// ObfuscateEmail masks the local part of an email address, preserving
// the first and last rune so the owner can still recognize it:
// "jane.doe@x.com" becomes "j******e@x.com".
func ObfuscateEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return email
	}

	local := []rune(email[:at])
	domain := email[at:]

	if len(local) <= 2 {
		return string(local[0]) + strings.Repeat("*", len(local)) + domain
	}

	var b strings.Builder
	b.WriteRune(local[0])
	b.WriteString(strings.Repeat("*", len(local)-2))
	b.WriteRune(local[len(local)-1])
	b.WriteString(domain)
	return b.String()
}
