package client

import (
	"crypto/tls"
	"fmt"

	"github.com/mailcore/mailproto/wire"
)

// StartTLS upgrades the connection to TLS.
//
// The background reader goroutine reads directly off the raw connection, so
// it must stop before that connection is wrapped in a tls.Conn: otherwise
// the old goroutine could read bytes belonging to the TLS handshake, or the
// new reader could be started over a conn the old one is still blocked in
// Read on. pauseAfterTag arms the old reader to exit right after it
// processes STARTTLS's own tagged response, and preSend registers that pause
// before the command is sent so there is no window where the response could
// arrive before the pause is armed.
func (c *Client) StartTLS(config *tls.Config) error {
	if config == nil {
		config = c.options.TLSConfig
	}
	if config == nil {
		return fmt.Errorf("TLS config required")
	}

	c.mu.Lock()
	oldReader := c.reader
	c.mu.Unlock()

	var paused <-chan struct{}
	result, err := c.executeTagged("STARTTLS", nil, func(tag string) {
		paused = oldReader.pauseAfterTag(tag)
	})
	if err != nil {
		return err
	}
	if err := commandResultError(result); err != nil {
		return err
	}

	// Wait for the old reader goroutine to see its own tagged response and
	// exit before touching the connection it was reading from.
	<-paused

	// Upgrade the connection
	tlsConn := tls.Client(c.conn, config)
	if err := tlsConn.Handshake(); err != nil {
		return fmt.Errorf("TLS handshake: %w", err)
	}

	c.mu.Lock()
	c.conn = tlsConn
	c.encoder = wire.NewEncoder(tlsConn)
	c.decoder = wire.NewDecoder(tlsConn)
	c.reader = newReader(c.decoder.Reader(), c)
	newR := c.reader
	c.mu.Unlock()

	go newR.run()

	return nil
}
