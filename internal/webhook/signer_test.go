package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignAndVerify(t *testing.T) {
	s := NewSigner("shh")
	payload := []byte(`{"type":"invoice.paid"}`)

	sig := s.Sign(payload)
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, sig)
	assert.True(t, s.Verify(payload, sig))

	t.Run("tampered payload fails", func(t *testing.T) {
		assert.False(t, s.Verify([]byte(`{"type":"invoice.void"}`), sig))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		assert.False(t, NewSigner("other").Verify(payload, sig))
	})

	t.Run("missing scheme prefix fails", func(t *testing.T) {
		assert.False(t, s.Verify(payload, sig[len("sha256="):]))
	})

	t.Run("signing is deterministic", func(t *testing.T) {
		assert.Equal(t, sig, s.Sign(payload))
	})
}
