package kvstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"namespace|collection",
		"app|users|profiles",
		"$nitrite_index|User+admin|email|unique",
		"has_X_marker",
		"has_P_marker",
		"has_K_marker",
		"a|b+c_X_d_P_e_K_f",
		"unicode-ключ-键",
	}
	for _, s := range cases {
		enc := encodeName(s)
		assert.NotContains(t, enc, "|")
		assert.NotContains(t, enc, "+")
		assert.Equal(t, s, decodeName(enc), "round trip failed for %q -> %q", s, enc)
	}
}

func TestEncodeFastPathPreservesSimpleNames(t *testing.T) {
	simple := []string{"collection", "my_map-1.db", "$nitrite_meta"}
	for _, s := range simple {
		assert.Equal(t, s, encodeName(s))
	}
}

func TestEncodeEscapesMarkersBeforeSubstituting(t *testing.T) {
	// A literal "_P_" in the input must not be mistaken for the encoding
	// of a "|" by decodeName.
	s := "literal_P_text"
	enc := encodeName(s)
	assert.Equal(t, s, decodeName(enc))
	assert.NotEqual(t, "literal|text", decodeName(enc))
}
