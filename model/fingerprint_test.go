package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintPathAndString(t *testing.T) {
	fp := NewFingerprint("Mars", "MGS", "MGS", "MOLA", "MGS-M-MOLA-3-PEDR-L1A-V1.0")
	assert.Equal(t, []string{"mars", "mgs", "mgs", "mola", "mgs-m-mola-3-pedr-l1a-v1.0"}, fp.Path())
	assert.Equal(t, "mars/mgs/mgs/mola/mgs-m-mola-3-pedr-l1a-v1.0", fp.String())
}

func TestFingerprintIsComparable(t *testing.T) {
	a := NewFingerprint("Mars", "MGS", "MGS", "MOLA", "DS1")
	b := NewFingerprint("mars", "mgs", "mgs", "mola", "ds1")
	assert.Equal(t, a, b)

	set := map[Fingerprint]bool{a: true}
	assert.True(t, set[b])
}
