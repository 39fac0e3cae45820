package cryptoutils

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ruteri/telemetry-envelope/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) interfaces.KeyPair {
	t.Helper()
	keys, err := DeriveKeys([]byte("test secret"))
	require.NoError(t, err)
	return keys
}

func TestSealOpenRoundTrip(t *testing.T) {
	keys := testKeys(t)

	for _, payload := range [][]byte{
		{},
		[]byte("x"),
		[]byte(`{"ts":1700000000000}`),
		bytes.Repeat([]byte{0xFF}, 4096),
	} {
		envelope, err := Seal(keys, payload)
		require.NoError(t, err)
		require.Len(t, envelope, len(payload)+Overhead)

		opened, err := Open(keys, envelope)
		require.NoError(t, err)
		require.Equal(t, payload, opened)
	}
}

func TestSealFreshIV(t *testing.T) {
	keys := testKeys(t)
	payload := []byte("same payload")

	first, err := Seal(keys, payload)
	require.NoError(t, err)
	second, err := Seal(keys, payload)
	require.NoError(t, err)

	assert.NotEqual(t, first[:IVSize], second[:IVSize])
	assert.NotEqual(t, first, second)
}

func TestSealDeterministicWithFixedIV(t *testing.T) {
	keys := testKeys(t)
	iv := bytes.Repeat([]byte{7}, IVSize)

	first, err := seal(bytes.NewReader(iv), keys, []byte("payload"))
	require.NoError(t, err)
	second, err := seal(bytes.NewReader(iv), keys, []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, iv, first[:IVSize])
}

func TestSealRandomFailure(t *testing.T) {
	_, err := seal(bytes.NewReader(nil), testKeys(t), []byte("payload"))
	require.Error(t, err)
}

func TestOpenRejectsTampering(t *testing.T) {
	keys := testKeys(t)
	envelope, err := Seal(keys, []byte("tamper with me"))
	require.NoError(t, err)

	for bit := 0; bit < len(envelope)*8; bit++ {
		tampered := bytes.Clone(envelope)
		tampered[bit/8] ^= 1 << (bit % 8)

		_, err := Open(keys, tampered)
		require.ErrorIs(t, err, interfaces.ErrAuthentication, "bit %d", bit)
	}
}

func TestOpenRejectsWrongKeys(t *testing.T) {
	envelope, err := Seal(testKeys(t), []byte("payload"))
	require.NoError(t, err)

	other, err := DeriveKeys([]byte("other secret"))
	require.NoError(t, err)

	_, err = Open(other, envelope)
	require.True(t, errors.Is(err, interfaces.ErrAuthentication))
}

func TestOpenRejectsShortInput(t *testing.T) {
	keys := testKeys(t)
	for _, size := range []int{0, 1, IVSize, Overhead - 1} {
		_, err := Open(keys, make([]byte, size))
		require.ErrorIs(t, err, interfaces.ErrAuthentication)
	}
}
