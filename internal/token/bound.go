package token

import "time"

// Codec binds a secret and algorithm to Sign and Verify.
type Codec struct {
	secret    string
	algorithm string
	now       func() time.Time
}

func NewCodec(secret string, algorithm string) *Codec {
	return &Codec{secret: secret, algorithm: algorithm, now: time.Now}
}

// WithClock replaces the clock used for expiry checks.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	copied := *c
	copied.now = now
	return &copied
}

func (c *Codec) Sign(payload Payload) (string, error) {
	return Sign(payload, c.secret, c.algorithm)
}

func (c *Codec) Decode(tokenString string) (*Payload, error) {
	return Verify(tokenString, c.secret, c.algorithm, c.now().UTC())
}
