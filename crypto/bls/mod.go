// Package bls implements the BLS signatures of the transactions over the
// BN256 pairing curve.
package bls

import (
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

const (
	// Algorithm is the name of the curve used for the BLS signature.
	Algorithm = "CURVE-BN256"
)

var (
	suite = pairing.NewSuiteBn256()
)

// Signer is a BLS key pair.
//
// - implements signed.Signer
type Signer struct {
	keyPair *key.Pair
}

// NewSigner returns a new random BLS signer.
func NewSigner() Signer {
	return Signer{keyPair: key.NewKeyPair(suite)}
}

// NewSignerFromBytes restores the signer from its private key.
func NewSignerFromBytes(data []byte) (Signer, error) {
	scalar := suite.Scalar()

	err := scalar.UnmarshalBinary(data)
	if err != nil {
		return Signer{}, xerrors.Errorf("couldn't unmarshal scalar: %v", err)
	}

	kp := &key.Pair{
		Private: scalar,
		Public:  suite.Point().Mul(scalar, nil),
	}

	return Signer{keyPair: kp}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns the private
// key.
func (s Signer) MarshalBinary() ([]byte, error) {
	data, err := s.keyPair.Private.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal scalar: %v", err)
	}

	return data, nil
}

// PublicKey implements signed.Signer. It returns the binary representation of
// the public key.
func (s Signer) PublicKey() []byte {
	data, err := s.keyPair.Public.MarshalBinary()
	if err != nil {
		// The points of the suite always marshal.
		panic("couldn't marshal point: " + err.Error())
	}

	return data
}

// Sign implements signed.Signer. It signs the message in parameter and
// returns the signature, or an error if it cannot sign.
func (s Signer) Sign(msg []byte) ([]byte, error) {
	sig, err := bls.Sign(suite, s.keyPair.Private, msg)
	if err != nil {
		return nil, xerrors.Errorf("couldn't make bls signature: %v", err)
	}

	return sig, nil
}

// Verifier verifies BLS signatures.
//
// - implements mem.Verifier
type Verifier struct{}

// Verify implements mem.Verifier. It returns nil if the signature matches the
// message with the public key.
func (Verifier) Verify(pubkey, msg, sig []byte) error {
	point, err := unmarshalPoint(pubkey)
	if err != nil {
		return err
	}

	err = bls.Verify(suite, point, msg, sig)
	if err != nil {
		return xerrors.Errorf("bls verify failed: %v", err)
	}

	return nil
}

// Generator generates the private key of new signers.
//
// - implements loader.Generator
type Generator struct{}

// Generate implements loader.Generator.
func (Generator) Generate() ([]byte, error) {
	return NewSigner().MarshalBinary()
}

// String returns a short representation of a public key.
func String(pubkey []byte) string {
	text := fmt.Sprintf("bls:%x", pubkey)
	if len(text) > 4+16 {
		// Output only the prefix and 16 characters of the buffer in
		// hexadecimal.
		text = text[:4+16]
	}

	return text
}

func unmarshalPoint(data []byte) (kyber.Point, error) {
	point := suite.Point()

	err := point.UnmarshalBinary(data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal point: %v", err)
	}

	return point, nil
}
