package variant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey_OriginsAgree(t *testing.T) {
	parsed := NewKey("chr1", 12345, "A", "G")
	persisted := NewKey("1", "12345", "A", "G")
	assert.Equal(t, parsed, persisted)

	m := map[Key]int{parsed: 1}
	assert.Equal(t, 1, m[persisted])
}

func TestNewKey_TypeDrift(t *testing.T) {
	want := Key{Chrom: "17", Pos: "41245466", Ref: "G", Alt: "A"}

	tests := []struct {
		name       string
		chrom, pos any
	}{
		{"strings", "17", "41245466"},
		{"int chrom", 17, "41245466"},
		{"int64 pos", "chr17", int64(41245466)},
		{"float pos", "CHR17", float64(41245466)},
		{"json number", json.Number("17"), json.Number("41245466")},
		{"padded", " chr17 ", " 41245466"},
		{"float string pos", "17", "41245466.0"},
		{"exponent string pos", "17", "4.1245466e7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, want, NewKey(tt.chrom, tt.pos, "G", "A"))
		})
	}
}

func TestNewKey_NonIntegralPositionKept(t *testing.T) {
	assert.Equal(t, "100.5", NewKey("1", "100.5", "A", "T").Pos)
	assert.Equal(t, "abc", NewKey("1", "abc", "A", "T").Pos)
	assert.Equal(t, "1.5", NewKey("1", 100, "1.5", "T").Ref, "only the position is reformatted")
}

func TestNormalizeChrom(t *testing.T) {
	assert.Equal(t, "1", NormalizeChrom("chr1"))
	assert.Equal(t, "X", NormalizeChrom("ChrX"))
	assert.Equal(t, "MT", NormalizeChrom("chrMT"))
	assert.Equal(t, "chr", NormalizeChrom("chr"))
	assert.Equal(t, "12", NormalizeChrom("12"))
}

func TestKey_Normalize(t *testing.T) {
	k := Key{Chrom: "chr2", Pos: "5", Ref: "C", Alt: "T"}
	assert.Equal(t, Key{Chrom: "2", Pos: "5", Ref: "C", Alt: "T"}, k.Normalize())
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("chr12-25245350-C-A")
	require.NoError(t, err)
	assert.Equal(t, Key{Chrom: "12", Pos: "25245350", Ref: "C", Alt: "A"}, k)
	assert.Equal(t, "12-25245350-C-A", k.String())
	assert.Equal(t, int64(25245350), k.PosInt())

	_, err = ParseKey("12-abc-C-A")
	assert.Error(t, err)

	_, err = ParseKey("12-100-C")
	assert.Error(t, err)
}
