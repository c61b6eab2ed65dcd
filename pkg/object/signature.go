package object

// SignatureHeader is the commit header that carries a detached signature.
const SignatureHeader = "gpgsig"

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit: its payload without the signature header.
func CommitSigningPayload(c *Commit) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	unsigned := *c
	unsigned.Extra = nil
	for _, h := range c.Extra {
		if h.Key == SignatureHeader {
			continue
		}
		unsigned.Extra = append(unsigned.Extra, h)
	}
	return MarshalCommit(&unsigned)
}

// CommitSignature returns the commit's detached signature, if any.
func CommitSignature(c *Commit) (string, bool) {
	return c.Header(SignatureHeader)
}

// SetCommitSignature replaces the signature header, appending it after the
// other extra headers as Git does.
func SetCommitSignature(c *Commit, sig string) {
	kept := c.Extra[:0:0]
	for _, h := range c.Extra {
		if h.Key != SignatureHeader {
			kept = append(kept, h)
		}
	}
	c.Extra = append(kept, Header{Key: SignatureHeader, Value: sig})
}
