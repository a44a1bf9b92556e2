package web

import (
	"fmt"
	"time"

	"github.com/a-andre/traffic/netsim"
)

// DefaultRequestSize is the fixed size of a request object in bytes,
// header included.
const DefaultRequestSize = 328

// ClientConfig is set once before Start and never mutated while the
// state machine runs.
type ClientConfig struct {
	// Remote is the server address to browse against.
	Remote netsim.Addr
	// Protocol selects the transport. Empty means the reliable
	// stream protocol.
	Protocol netsim.Protocol
	// RequestSize is the wire size of every request. Zero means
	// DefaultRequestSize.
	RequestSize int
	// Vars supplies the random draws driving the browsing cycle.
	Vars Variables
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Protocol == "" {
		c.Protocol = netsim.ProtocolTCP
	}
	if c.RequestSize == 0 {
		c.RequestSize = DefaultRequestSize
	}
	return c
}

// Validate rejects degenerate configurations before the first
// scheduled event; defaults are applied first by NewClient.
func (c ClientConfig) Validate() error {
	if c.Remote.Host == "" || c.Remote.Port == 0 {
		return fmt.Errorf("%w: remote address %q", ErrInvalidConfig, c.Remote)
	}
	if !c.Protocol.Valid() {
		return fmt.Errorf("%w: protocol %q", ErrInvalidConfig, c.Protocol)
	}
	if c.RequestSize < HeaderSize {
		return fmt.Errorf("%w: request size %d below header size %d", ErrInvalidConfig, c.RequestSize, HeaderSize)
	}
	if c.Vars == nil {
		return fmt.Errorf("%w: nil variable bank", ErrInvalidConfig)
	}
	return nil
}

// ServerConfig is set once before Start and never mutated while the
// server runs.
type ServerConfig struct {
	// Local is the listening address.
	Local netsim.Addr
	// Protocol selects the transport. Empty means the reliable
	// stream protocol.
	Protocol netsim.Protocol
	// MTU caps the size of each transmitted packet. Zero draws the
	// value from Vars at Start.
	MTU int
	// ResponseDelay is a fixed delay before the first byte of each
	// response. Mutually exclusive with DrawResponseDelay.
	ResponseDelay time.Duration
	// DrawResponseDelay draws the delay from Vars per response.
	DrawResponseDelay bool
	// Vars supplies object sizes and the optional response delay.
	Vars Variables
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Protocol == "" {
		c.Protocol = netsim.ProtocolTCP
	}
	return c
}

func (c ServerConfig) Validate() error {
	if c.Local.Host == "" || c.Local.Port == 0 {
		return fmt.Errorf("%w: local address %q", ErrInvalidConfig, c.Local)
	}
	if !c.Protocol.Valid() {
		return fmt.Errorf("%w: protocol %q", ErrInvalidConfig, c.Protocol)
	}
	if c.MTU < 0 || (c.MTU > 0 && c.MTU < HeaderSize) {
		return fmt.Errorf("%w: MTU %d", ErrInvalidConfig, c.MTU)
	}
	if c.ResponseDelay < 0 {
		return fmt.Errorf("%w: negative response delay", ErrInvalidConfig)
	}
	if c.DrawResponseDelay && c.ResponseDelay != 0 {
		return fmt.Errorf("%w: fixed and drawn response delay are mutually exclusive", ErrInvalidConfig)
	}
	if c.Vars == nil {
		return fmt.Errorf("%w: nil variable bank", ErrInvalidConfig)
	}
	return nil
}
