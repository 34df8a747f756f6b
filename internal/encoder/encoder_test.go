package encoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physiqueAi/internal/physique"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("handle revoked") }

func TestEncode_RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0xff},
		{0xff, 0xd8},
		{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'},
		bytes.Repeat([]byte{0x89, 'P', 'N', 'G', 0x00}, 2048),
	}

	for _, raw := range inputs {
		payload, err := Encode(bytes.NewReader(raw), "image/jpeg")
		require.NoError(t, err)

		assert.Equal(t, "image/jpeg", payload.MIMEType)
		decoded, err := base64.StdEncoding.DecodeString(payload.Data)
		require.NoError(t, err)
		assert.Equal(t, raw, decoded)

		back, err := payload.Bytes()
		require.NoError(t, err)
		assert.Equal(t, len(raw), len(back))
	}
}

func TestEncode_KeepsDeclaredType(t *testing.T) {
	payload, err := Encode(bytes.NewReader([]byte("not really a png")), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", payload.MIMEType)
}

func TestEncode_ReadError(t *testing.T) {
	_, err := Encode(failingReader{}, "image/png")
	require.Error(t, err)
	assert.ErrorIs(t, err, physique.ErrRead)
	assert.Contains(t, err.Error(), "handle revoked")
}

func TestDataURI(t *testing.T) {
	payload := Payload{Data: "AAEC", MIMEType: "image/webp"}
	assert.Equal(t, "data:image/webp;base64,AAEC", payload.DataURI())
}
