package bls

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSigner_Sign(t *testing.T) {
	signer := NewSigner()

	sig, err := signer.Sign([]byte("deadbeef"))
	require.NoError(t, err)

	err = Verifier{}.Verify(signer.PublicKey(), []byte("deadbeef"), sig)
	require.NoError(t, err)

	err = Verifier{}.Verify(signer.PublicKey(), []byte("abc"), sig)
	require.EqualError(t, err, "bls verify failed: bls: invalid signature")

	err = Verifier{}.Verify(NewSigner().PublicKey(), []byte("deadbeef"), sig)
	require.EqualError(t, err, "bls verify failed: bls: invalid signature")
}

func TestSigner_MarshalBinary(t *testing.T) {
	signer := NewSigner()

	data, err := signer.MarshalBinary()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := NewSignerFromBytes(data)
	require.NoError(t, err)
	require.Equal(t, signer.PublicKey(), restored.PublicKey())

	sig, err := restored.Sign([]byte("deadbeef"))
	require.NoError(t, err)
	require.NoError(t, Verifier{}.Verify(signer.PublicKey(), []byte("deadbeef"), sig))

	_, err = NewSignerFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't unmarshal scalar: ")
}

func TestVerifier_MalformedKey(t *testing.T) {
	err := Verifier{}.Verify([]byte{1, 2, 3}, []byte("msg"), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't unmarshal point: ")
}

func TestGenerator_Generate(t *testing.T) {
	data, err := Generator{}.Generate()
	require.NoError(t, err)

	_, err = NewSignerFromBytes(data)
	require.NoError(t, err)
}

func TestString(t *testing.T) {
	require.Equal(t, "bls:0102", String([]byte{1, 2}))
	require.Len(t, String(NewSigner().PublicKey()), 20)
}
