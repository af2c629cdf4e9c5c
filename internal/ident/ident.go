// Package ident validates component names before they are used to
// address schema objects. Component tables are created by substituting
// the name into schema statements, so every name must be confined to a
// safe identifier character set first.
package ident

import "fmt"

// maxLen bounds identifier length well below every SQL engine's limit.
const maxLen = 64

// Valid reports whether name is safe to use as part of an SQL
// identifier: an ASCII letter followed by letters, digits or
// underscores, at most 64 bytes.
func Valid(name string) bool {
	if len(name) == 0 || len(name) > maxLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		case c == '_':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Check returns a descriptive error for names rejected by Valid.
func Check(name string) error {
	if !Valid(name) {
		return fmt.Errorf("invalid component name %q: must be an ASCII letter followed by letters, digits or underscores, at most %d bytes", name, maxLen)
	}
	return nil
}
