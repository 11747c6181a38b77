package mailbox

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/model"
)

func TestComposeCommentNotification(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	n := model.CommentNotification("t1", "Design homepage", "Bob", model.Timestamp(at.UnixMilli()))

	raw, err := Compose(n, "me@example.com", at)
	require.NoError(t, err)

	r, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer r.Close()

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "[taskboard] Design homepage", subject)

	from, err := r.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "me@example.com", from[0].Address)

	date, err := r.Header.Date()
	require.NoError(t, err)
	assert.True(t, at.Equal(date))
	assert.Equal(t, "t1", r.Header.Get("X-Taskboard-Task"))

	id, err := r.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	part, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `New comment on task "Design homepage" by Bob`)
	assert.Contains(t, string(body), "Author: Bob")
}

func TestComposeAlert(t *testing.T) {
	raw, err := Compose(model.Alert(model.SeverityError, "Error loading tasks."), "me@example.com", time.Now())
	require.NoError(t, err)

	r, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer r.Close()

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "[taskboard] error", subject)
	assert.Empty(t, r.Header.Get("X-Taskboard-Task"))
}
