package file_durable_kv_pairs

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"net/url"
	"strings"
)

const (
	// emptyKeyName never appears as an escaped name, since QueryEscape always escapes '='.
	emptyKeyName = "="
	// QueryEscape always escapes '#', so escaped names never start with it.
	hashedNamePrefix = "#"
	// Escaped names longer than this are replaced by hashed ones,
	// keeping every name under the common 255 bytes limit.
	maxEscapedNameLen = 240
)

// EncodeKey maps key to a file name, injectively.
// A leading dot is escaped so names never clash with "." / ".." or temp files.
// Keys too long to be escaped in place get a hashed name, their unit keeps the key itself.
func EncodeKey(key string) string {
	if key == "" {
		return emptyKeyName
	}

	name := url.QueryEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}

	if len(name) > maxEscapedNameLen {
		sum := sha256.Sum256([]byte(key))
		return hashedNamePrefix + hex.EncodeToString(sum[:])
	}

	return name
}

// DecodeKey inverts EncodeKey for names holding the key.
// Only canonical names are accepted, anything else is not a stored unit.
// Hashed names report false, their key is read from the unit by decodeUnit.
func DecodeKey(name string) (string, bool) {
	if name == emptyKeyName {
		return "", true
	}

	key, err := url.QueryUnescape(name)
	if err != nil {
		return "", false
	}

	if EncodeKey(key) != name {
		return "", false
	}

	return key, true
}

// IsHashedName reports whether name was produced for a long key.
func IsHashedName(name string) bool {
	return strings.HasPrefix(name, hashedNamePrefix)
}

// encodeUnit returns file content for key.
// Units with hashed names start with the uvarint key length and the key.
func encodeUnit(key string, value []byte) []byte {
	if !IsHashedName(EncodeKey(key)) {
		return value
	}

	buf := make([]byte, 0, binary.MaxVarintLen64+len(key)+len(value))
	buf = binary.AppendUvarint(buf, uint64(len(key)))
	buf = append(buf, key...)

	return append(buf, value...)
}

// decodeUnit returns key and value of the unit stored as file name with content data.
func decodeUnit(name string, data []byte) (string, []byte, bool) {
	if !IsHashedName(name) {
		key, ok := DecodeKey(name)
		return key, data, ok
	}

	keyLen, n := binary.Uvarint(data)
	if n <= 0 || keyLen > uint64(len(data)-n) {
		return "", nil, false
	}

	key := string(data[n : n+int(keyLen)])
	if EncodeKey(key) != name {
		return "", nil, false
	}

	return key, data[n+int(keyLen):], true
}
