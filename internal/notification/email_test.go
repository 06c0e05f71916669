package notification

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/vigil-cam/vigil/internal/errors"
)

type fakeMailSender struct {
	err  error
	msgs []*mail.Msg
}

func (f *fakeMailSender) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func newTestEmailNotifier(t *testing.T, sender *fakeMailSender) *EmailNotifier {
	t.Helper()
	n, err := NewEmailNotifier(EmailConfig{
		Host: "smtp.example.com",
		From: "vigil@example.com",
		To:   []string{"guard@example.com", "ops@example.com"},
	})
	require.NoError(t, err)
	n.newSender = func() (mailSender, error) { return sender, nil }
	return n
}

func TestNewEmailNotifierValidation(t *testing.T) {
	t.Parallel()

	_, err := NewEmailNotifier(EmailConfig{Host: "smtp.example.com", From: "a@example.com"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	n, err := NewEmailNotifier(EmailConfig{Host: "smtp.example.com", From: "a@example.com", To: []string{"b@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, DefaultSMTPPort, n.cfg.Port)
	assert.Equal(t, "email", n.Name())
}

func TestEmailSendBuildsMessage(t *testing.T) {
	t.Parallel()

	sender := &fakeMailSender{}
	n := newTestEmailNotifier(t, sender)
	alert := Compose(testJob(t), "Main gate")

	require.NoError(t, n.Send(t.Context(), alert))
	require.Len(t, sender.msgs, 1)

	msg := sender.msgs[0]
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"guard@example.com", "ops@example.com"}, rcpts)
	assert.Equal(t, []string{AlertSubject}, msg.GetGenHeader(mail.HeaderSubject))

	var names []string
	for _, f := range msg.GetAttachments() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"frame_1.jpg", "frame_2.jpg", ClipAttachmentName}, names)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Location: Helsinki")
}

func TestEmailSkipsMissingAttachments(t *testing.T) {
	t.Parallel()

	sender := &fakeMailSender{}
	n := newTestEmailNotifier(t, sender)
	job := testJob(t)
	require.NoError(t, os.Remove(job.Evidence.ClipPath))

	require.NoError(t, n.Send(t.Context(), Compose(job, "")))
	require.Len(t, sender.msgs, 1)
	assert.Len(t, sender.msgs[0].GetAttachments(), 2)
}

func TestEmailSendError(t *testing.T) {
	t.Parallel()

	sender := &fakeMailSender{err: errors.NewStd("535 authentication failed")}
	n := newTestEmailNotifier(t, sender)

	err := n.Send(t.Context(), testAlert())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryChannelDelivery))
}

func TestEmailInvalidSender(t *testing.T) {
	t.Parallel()

	n, err := NewEmailNotifier(EmailConfig{Host: "smtp.example.com", From: "not an address", To: []string{"b@example.com"}})
	require.NoError(t, err)
	sender := &fakeMailSender{}
	n.newSender = func() (mailSender, error) { return sender, nil }

	err = n.Send(t.Context(), testAlert())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Empty(t, sender.msgs)
}
