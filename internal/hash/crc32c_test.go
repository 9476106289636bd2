package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	// Check value of the Castagnoli polynomial.
	assert.Equal(t, uint32(0xe3069283), CRC32C([]byte("123456789")))

	h := NewCRC32C()
	_, _ = h.Write([]byte("12345"))
	_, _ = h.Write([]byte("6789"))
	assert.Equal(t, CRC32C([]byte("123456789")), h.Sum32())
}

func TestVerify(t *testing.T) {
	data := []byte("directory payload")
	sum := CRC32C(data)

	assert.True(t, Verify(data, sum))
	assert.False(t, Verify(data, sum^1))
	assert.False(t, Verify(data[1:], sum))
}

func TestCRC32CBase64(t *testing.T) {
	assert.Equal(t, "4waSgw==", CRC32CBase64([]byte("123456789")))
	assert.Equal(t, "AAAAAA==", CRC32CBase64(nil))
}
