package y

import (
	"hash/crc32"
	"testing"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCalculateChecksum_CRC32C(t *testing.T) {
	data := []byte("hello world")
	expected := uint64(crc32.Checksum(data, CastagnoliCrcTable))
	got := CalculateChecksum(data, CRC32C)
	require.Equal(t, expected, got)

	// empty input
	expectedEmpty := uint64(crc32.Checksum([]byte{}, CastagnoliCrcTable))
	gotEmpty := CalculateChecksum([]byte{}, CRC32C)
	require.Equal(t, expectedEmpty, gotEmpty)
}

func TestCalculateChecksum_XXHash64(t *testing.T) {
	data := []byte("hello world")
	expected := xxhash.Sum64(data)
	got := CalculateChecksum(data, XXHash64)
	require.Equal(t, expected, got)
}

func TestVerifyChecksum_Success(t *testing.T) {
	data := []byte("hello world")
	require.NoError(t, VerifyChecksum(data, CRC32C, CalculateChecksum(data, CRC32C)))
	require.NoError(t, VerifyChecksum(data, XXHash64, CalculateChecksum(data, XXHash64)))
}

func TestVerifyChecksum_Mismatch(t *testing.T) {
	data := []byte("x")
	err := VerifyChecksum(data, CRC32C, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum mismatch")
	require.Equal(t, ErrChecksumMismatch, errors.Cause(err))
}

func TestCalculateChecksum_UnsupportedAlgoPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for unsupported algorithm")
		}
	}()

	_ = CalculateChecksum([]byte("x"), ChecksumAlgorithm(99))
}
