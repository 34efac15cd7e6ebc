package element

import "strings"

// Compare orders two records of the same element by their merge key:
// version first, then versionNonce, then id. It returns -1, 0 or +1.
//
// Equal keys only arise for the same record being applied twice.
func Compare(a, b Element) int {
	switch {
	case a.Version < b.Version:
		return -1
	case a.Version > b.Version:
		return 1
	case a.VersionNonce < b.VersionNonce:
		return -1
	case a.VersionNonce > b.VersionNonce:
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// Newer reports whether candidate strictly beats current.
func Newer(candidate, current Element) bool {
	return Compare(candidate, current) > 0
}
