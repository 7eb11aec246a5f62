package wire

import (
	"github.com/Klingon-tech/networkneuron/internal/errs"
)

// Accept decodes raw wire bytes, verifies the envelope's signature against
// the sender's public key, and checks it against the replay guard — in that
// order, so no payload-specific handler ever sees an envelope that failed
// any of the three checks.
func Accept(data []byte, senderPublicKey []byte, guard *ReplayGuard) (*Envelope, error) {
	e, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if !e.Verify(senderPublicKey) {
		return nil, errs.New(errs.WireBadSignature, e.SourceID.String(), nil)
	}

	if guard.Check(e.SourceID, e.MsgID) {
		return nil, errs.New(errs.WireReplay, e.SourceID.String(), nil)
	}

	return e, nil
}
