package similarity

import "strings"

// EmailMatch is the kind of agreement between two email addresses
type EmailMatch string

const (
	EmailNone   EmailMatch = "none"
	EmailDomain EmailMatch = "domain"
	EmailExact  EmailMatch = "exact"
)

// publicDomains never produce a domain match; sharing gmail.com says
// nothing about identity.
var publicDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"icloud.com":     true,
	"me.com":         true,
	"aol.com":        true,
	"proton.me":      true,
	"protonmail.com": true,
	"gmx.de":         true,
	"web.de":         true,
}

// CompareEmail compares two addresses. Case and "+tag" suffixes on the
// local part are ignored.
func CompareEmail(a, b string) EmailMatch {
	la, da, okA := splitEmail(a)
	lb, db, okB := splitEmail(b)
	if !okA || !okB || da != db {
		return EmailNone
	}
	if la == lb {
		return EmailExact
	}
	if publicDomains[da] {
		return EmailNone
	}
	return EmailDomain
}

func splitEmail(s string) (local, domain string, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return "", "", false
	}
	local, domain = s[:at], s[at+1:]
	if plus := strings.Index(local, "+"); plus > 0 {
		local = local[:plus]
	}
	return local, domain, true
}
