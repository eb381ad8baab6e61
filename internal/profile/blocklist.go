package profile

import "strings"

// blockedTerms covers administrative, brand, scam, and system keywords.
// Matching is substring-both-ways to defeat impersonation patterns like
// "solink_support_2".
var blockedTerms = []string{
	"admin",
	"administrator",
	"root",
	"system",
	"support",
	"moderator",
	"staff",
	"official",
	"security",
	"wallet",
	"airdrop",
	"giveaway",
	"verify",
	"verification",
	"solana",
	"solink",
	"help",
	"service",
}

// isBlocked reports whether n contains a blocked term, or a blocked term
// contains n, either direction counting as a match.
func isBlocked(n string) bool {
	for _, term := range blockedTerms {
		if strings.Contains(n, term) || strings.Contains(term, n) {
			return true
		}
	}
	return false
}
