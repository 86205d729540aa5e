package noisesession

import (
	"encoding/json"
	"fmt"

	"github.com/agora-voice/agora/pkg/identity"
)

// identityAssertion is exchanged as the handshake payload of messages 2 and
// 3 of Noise_XX, binding the ephemeral Noise static key just revealed to a
// peer's long-lived Agora identity. The Noise static key authenticates the
// DH; this assertion authenticates which peer identity owns that key.
type identityAssertion struct {
	PublicKey []byte `json:"public_key"`
	Signature []byte `json:"signature"`
}

func signAssertion(id *identity.Identity, noiseStaticPublic []byte) ([]byte, error) {
	assertion := identityAssertion{
		PublicKey: id.PublicKey(),
		Signature: id.Sign(noiseStaticPublic),
	}
	return json.Marshal(assertion)
}

// verifyAssertion checks that payload is a well-formed identityAssertion
// whose signature validates over the peer's Noise static public key, and
// returns the asserted Agora peer id.
func verifyAssertion(payload, peerNoiseStatic []byte) (peerID string, publicKey []byte, err error) {
	var assertion identityAssertion
	if err := json.Unmarshal(payload, &assertion); err != nil {
		return "", nil, fmt.Errorf("noisesession: decode identity assertion: %w", err)
	}
	if !identity.Verify(assertion.PublicKey, peerNoiseStatic, assertion.Signature) {
		return "", nil, ErrHandshakeFailed
	}
	return identity.DerivePeerID(assertion.PublicKey), assertion.PublicKey, nil
}
