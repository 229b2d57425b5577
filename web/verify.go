package web

import "unicode"

const maxGroupNameLength = 100

var allowedSafeSymbols = map[rune]bool{
	'_':  true,
	'-':  true,
	'.':  true,
	'@':  true,
	'#':  true,
	'&':  true,
	'\'': true,
	' ':  true,
}

// IsSecureString reports whether s holds only letters, digits and safe symbols.
func IsSecureString(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !allowedSafeSymbols[r] {
			return false
		}
	}
	return true
}

// VerifyGroupName bounds group names received over HTTP. Blank names are left to the
// group manager, which rejects them after trimming.
func VerifyGroupName(name string) bool {
	if len([]rune(name)) > maxGroupNameLength {
		return false
	}
	return IsSecureString(name)
}
