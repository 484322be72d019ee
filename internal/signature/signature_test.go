package signature

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	addr, err := PublicKeyAddress(priv)
	if err != nil {
		t.Fatalf("PublicKeyAddress: %v", err)
	}

	msg := []byte("pay alice 10 coins")
	sig, err := Sign(priv, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if !VerifyAddress(sig, addr, msg) {
		t.Fatal("verification of an untampered signature failed")
	}
}

func TestVerifyFailsOnMutatedMessage(t *testing.T) {
	priv, _ := GenerateKey()
	addr, _ := PublicKeyAddress(priv)
	msg := []byte("pay alice 10 coins")
	sig, _ := Sign(priv, msg)

	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0xff
	if VerifyAddress(sig, addr, tampered) {
		t.Fatal("verification succeeded on a mutated message")
	}
}

func TestVerifyFailsOnMutatedSignature(t *testing.T) {
	priv, _ := GenerateKey()
	addr, _ := PublicKeyAddress(priv)
	msg := []byte("pay alice 10 coins")
	sig, _ := Sign(priv, msg)

	tampered := append(Signature(nil), sig...)
	tampered[len(tampered)-1] ^= 0xff
	if VerifyAddress(tampered, addr, msg) {
		t.Fatal("verification succeeded on a mutated signature")
	}
}

func TestVerifyFailsOnWrongKey(t *testing.T) {
	priv, _ := GenerateKey()
	other, _ := GenerateKey()
	addr, _ := PublicKeyAddress(other)
	msg := []byte("pay alice 10 coins")
	sig, _ := Sign(priv, msg)

	if VerifyAddress(sig, addr, msg) {
		t.Fatal("verification succeeded under the wrong public key")
	}
}

func TestLoadPublicKeyRejectsGarbage(t *testing.T) {
	if _, err := LoadPublicKey(Address("not pem")); err == nil {
		t.Fatal("LoadPublicKey accepted non-PEM input")
	}
}
