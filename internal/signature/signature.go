// Package signature implements the node's only asymmetric primitive:
// RSA-2048 keypairs, PEM-encoded public keys used as on-chain addresses,
// and RSA-PSS(SHA-512, MGF1, max salt) signatures.
package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/pem"
	"errors"
)

// KeySize is the modulus size, in bits, of generated keys.
const KeySize = 2048

// Address is a PEM-encoded RSA SubjectPublicKeyInfo. Two addresses are
// equal iff their bytes are equal; the node never interprets an address
// beyond using it to verify a signature.
type Address []byte

// Signature is an opaque RSA-PSS signature.
type Signature []byte

var pssOptions = &rsa.PSSOptions{
	SaltLength: rsa.PSSSaltLengthAuto,
	Hash:       crypto.SHA512,
}

// GenerateKey creates a new RSA-2048 private key.
func GenerateKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, KeySize)
}

// PublicKeyAddress PEM-encodes the public half of priv as a SubjectPublicKeyInfo,
// the on-chain Address form.
func PublicKeyAddress(priv *rsa.PrivateKey) (Address, error) {
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return Address(pem.EncodeToMemory(block)), nil
}

// LoadPublicKey parses a PEM-encoded SubjectPublicKeyInfo address back
// into an *rsa.PublicKey.
func LoadPublicKey(addr Address) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(addr)
	if block == nil {
		return nil, errors.New("signature: address is not a valid PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("signature: address does not hold an RSA public key")
	}
	return rsaPub, nil
}

// Sign signs msg with priv using RSA-PSS(SHA-512, MGF1(SHA-512), max salt).
func Sign(priv *rsa.PrivateKey, msg []byte) (Signature, error) {
	digest := sha512.Sum512(msg)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA512, digest[:], pssOptions)
	if err != nil {
		return nil, err
	}
	return Signature(sig), nil
}

// Verify reports whether sig is a valid RSA-PSS signature of msg under pub.
// Any failure in the underlying library — malformed key, malformed
// signature, mismatched digest — is folded into a false return; there is
// no success path other than a clean verification.
func Verify(sig Signature, pub *rsa.PublicKey, msg []byte) bool {
	if pub == nil {
		return false
	}
	digest := sha512.Sum512(msg)
	err := rsa.VerifyPSS(pub, crypto.SHA512, digest[:], sig, pssOptions)
	return err == nil
}

// VerifyAddress is a convenience wrapper that loads addr as a public key
// before verifying. It returns false (never an error) if addr does not
// decode to a usable RSA public key, matching Verify's never-fail contract.
func VerifyAddress(sig Signature, addr Address, msg []byte) bool {
	pub, err := LoadPublicKey(addr)
	if err != nil {
		return false
	}
	return Verify(sig, pub, msg)
}
