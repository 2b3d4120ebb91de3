package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitfieldSetAndCheck(t *testing.T) {
	bf := make(Bitfield, 2)
	bf.SetPiece(0)
	bf.SetPiece(9)

	assert.True(t, bf.HasPiece(0))
	assert.True(t, bf.HasPiece(9))
	assert.False(t, bf.HasPiece(1))
	assert.False(t, bf.HasPiece(8))
}

func TestBitfieldOutOfRangeIsFalse(t *testing.T) {
	bf := make(Bitfield, 1)
	assert.False(t, bf.HasPiece(100))
}
