package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/taskboard/internal/model"
)

// Compose renders n as a plain-text message from and to the given address.
func Compose(n model.Notification, address string, at time.Time) ([]byte, error) {
	addr := []*mail.Address{{Name: "Taskboard", Address: address}}

	var h mail.Header
	h.SetDate(at)
	h.SetAddressList("From", addr)
	h.SetAddressList("To", addr)
	h.SetSubject(subject(n))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	if n.TaskID != "" {
		h.Set("X-Taskboard-Task", n.TaskID)
	}
	h.Set("X-Taskboard-Severity", string(n.Severity))

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, body(n)); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), nil
}

func subject(n model.Notification) string {
	if n.TaskTitle != "" {
		return fmt.Sprintf("[taskboard] %s", n.TaskTitle)
	}
	return "[taskboard] " + string(n.Severity)
}

func body(n model.Notification) string {
	var b bytes.Buffer
	fmt.Fprintln(&b, n.Message)
	if n.Author != "" {
		fmt.Fprintf(&b, "\nAuthor: %s\n", n.Author)
	}
	if !n.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Posted: %s\n", n.CreatedAt.Time().UTC().Format(time.RFC1123))
	}
	return b.String()
}
