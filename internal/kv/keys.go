package kv

import "strings"

// Separator joins namespace segments of a key.
const Separator = '/'

// Key builds a namespaced key: namespace/part1/part2...
func Key(namespace string, parts ...string) []byte {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte(Separator)
		b.WriteString(p)
	}
	return []byte(b.String())
}

// Prefix returns the scan prefix for every key inside namespace.
func Prefix(namespace string) []byte {
	return append([]byte(namespace), Separator)
}

// TrimPrefix returns the part of key after prefix.
func TrimPrefix(key, prefix []byte) string {
	if len(key) < len(prefix) {
		return ""
	}
	return string(key[len(prefix):])
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists (prefix of all 0xff bytes).
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
