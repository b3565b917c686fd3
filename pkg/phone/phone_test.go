package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"formatted ten digits", "(423) 555-0134", "14235550134"},
		{"bare ten digits", "4235550134", "14235550134"},
		{"eleven digits with country code", "14235550134", "14235550134"},
		{"plus prefix", "+1 423 555 0134", "14235550134"},
		{"dots and dashes", "423.555.0134", "14235550134"},
		{"eleven digits not starting with 1", "24235550134", "124235550134"},
		{"too short gets best-effort prefix", "5550134", "15550134"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.raw))
		})
	}
}

func TestCanonicalizeFormatsAgree(t *testing.T) {
	// The same number in different formats must land on the same fingerprint,
	// otherwise a listed number could be reached by reformatting it.
	formats := []string{"(423) 555-0134", "423-555-0134", "+14235550134", "1 423 555 0134"}
	want := Fingerprint(Canonicalize("4235550134"))
	for _, f := range formats {
		assert.Equal(t, want, Fingerprint(Canonicalize(f)), "format %q", f)
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("14235550134")
	require.Len(t, fp, 64)
	assert.NotEqual(t, fp, Fingerprint("14235550135"))
	// Stable across calls.
	assert.Equal(t, fp, Fingerprint("14235550134"))
}

func TestAreaCode(t *testing.T) {
	assert.Equal(t, "423", AreaCode("14235550134"))
	assert.Equal(t, "415", AreaCode("14155550134"))
	assert.Equal(t, "", AreaCode("4235550134"), "non-canonical length")
	assert.Equal(t, "", AreaCode("24235550134"), "wrong country code")
	assert.Equal(t, "", AreaCode(""))
}
