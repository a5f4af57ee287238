package core

import "strings"

// SafeName replaces every character outside [A-Za-z0-9_.\-() ] with "_".
// It is used for blob object names and export file names.
func SafeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case strings.ContainsRune("_.-() ", r):
			return r
		}
		return '_'
	}, name)
}
