package compliq

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBase64RoundTrip(t *testing.T) {
	sizes := []int{0, 1, decodeChunkSize - 1, decodeChunkSize, decodeChunkSize + 1, 1000000}

	for _, size := range sizes {
		raw := bytes.Repeat([]byte{0xAB}, size)
		encoded := base64.StdEncoding.EncodeToString(raw)

		decoded, err := DecodeBase64(encoded)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, size, len(decoded), "size %d", size)
		assert.True(t, bytes.Equal(raw, decoded), "size %d", size)
	}
}

func TestDecodeBase64BinaryContent(t *testing.T) {
	raw := make([]byte, 2048)
	for i := range raw {
		raw[i] = byte(i % 256)
	}

	decoded, err := DecodeBase64(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestDecodeBase64Invalid(t *testing.T) {
	_, err := DecodeBase64("not!!valid@@base64")
	require.Error(t, err)

	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}
