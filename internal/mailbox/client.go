// Package mailbox archives notifications as messages in an IMAP mailbox.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Appender stores raw RFC 5322 messages in a mailbox.
type Appender interface {
	Append(ctx context.Context, mailbox string, msg []byte, at time.Time) error
}

// IMAPClient appends messages over IMAP using go-imap v2.
type IMAPClient struct {
	addr     string
	username string
	password string
	tls      bool
}

// NewIMAPClient creates a client for the server at addr (host:port).
// tls selects implicit TLS; otherwise STARTTLS is negotiated.
func NewIMAPClient(addr, username, password string, tls bool) *IMAPClient {
	return &IMAPClient{
		addr:     addr,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Connect establishes a connection to the IMAP server and authenticates.
// The caller is responsible for calling Logout on the returned client.
func (c *IMAPClient) Connect(_ context.Context) (*imapclient.Client, error) {
	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(c.addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(c.addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", c.addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", c.username, err)
	}

	return client, nil
}

// Append connects, makes sure mailbox exists and appends msg to it with
// the internal date set to at.
func (c *IMAPClient) Append(ctx context.Context, mailbox string, msg []byte, at time.Time) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := client.Create(mailbox, nil).Wait(); err != nil && !alreadyExists(err) {
		return fmt.Errorf("creating mailbox %s: %w", mailbox, err)
	}

	cmd := client.Append(mailbox, int64(len(msg)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  at,
	})
	if _, err := cmd.Write(msg); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("closing append: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	return nil
}

func alreadyExists(err error) bool {
	var imapErr *imap.Error
	return errors.As(err, &imapErr) && imapErr.Code == imap.ResponseCodeAlreadyExists
}
