// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package base64url provides the URL-safe unpadded base64 codec used for
// credential identifiers, public keys and challenges throughout courtside.
//
// Encode always produces the canonical form (RFC 4648 §5, no padding).
// Decode is tolerant on input: it accepts standard-alphabet and padded
// variants so values produced by older clients still resolve to the same
// bytes. Normalize round-trips a string through Decode and Encode to
// obtain the canonical form used for store lookups.
package base64url

import (
	"encoding/base64"
	"strings"
)

// Encode returns the canonical URL-safe unpadded base64 encoding of b.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode decodes s, accepting both the URL-safe and standard alphabets,
// with or without padding.
func Decode(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "+", "-")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.TrimRight(s, "=")
	return base64.RawURLEncoding.DecodeString(s)
}

// Normalize converts any accepted base64 variant of a value to its
// canonical URL-safe unpadded form.
func Normalize(s string) (string, error) {
	b, err := Decode(s)
	if err != nil {
		return "", err
	}
	return Encode(b), nil
}
