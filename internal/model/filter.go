package model

import "strings"

// Filter reports whether key matches.
type Filter func(key string) bool

func PrefixFilter(prefix string) Filter {
	return func(key string) bool {
		return strings.HasPrefix(key, prefix)
	}
}

func AllFilter(string) bool {
	return true
}
