package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gov-appointments/internal/observability"
)

func TestRenderNotification_EscapesInput(t *testing.T) {
	html, err := RenderNotification("Nimal <b>", "Appointment Confirmed", "Reference: PASSPORT-202501150900-1234")
	require.NoError(t, err)

	assert.Contains(t, html, "Appointment Confirmed")
	assert.Contains(t, html, "PASSPORT-202501150900-1234")
	assert.Contains(t, html, "Nimal &lt;b&gt;")
	assert.NotContains(t, html, "<b>")
}

func TestRenderNotification_NoName(t *testing.T) {
	html, err := RenderNotification("", "Title", "Body")
	require.NoError(t, err)
	assert.NotContains(t, html, "Dear")
}

func TestNew_WithoutKeyLogsOnly(t *testing.T) {
	s := New("", "noreply@example.com", observability.Discard())
	_, ok := s.(LogSender)
	require.True(t, ok)

	assert.NoError(t, s.Send(context.Background(), Message{To: "a@example.com", Subject: "x"}))
	assert.ErrorIs(t, s.Send(context.Background(), Message{Subject: "x"}), ErrNoRecipient)
}

func TestResendSender_RequiresRecipient(t *testing.T) {
	s := NewResendSender("re_test", "noreply@example.com")
	assert.ErrorIs(t, s.Send(context.Background(), Message{Subject: "x"}), ErrNoRecipient)
}
