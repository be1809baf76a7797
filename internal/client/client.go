// Package client is the user-space library for the control channel. It
// marshals rule records across the daemon boundary and surfaces reply
// codes as the engine's sentinel errors.
package client

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/hardenedlabs/secadm/internal/engine"
	"github.com/hardenedlabs/secadm/internal/wire"
)

// ErrProtocol covers replies the client cannot interpret: version skew,
// malformed payloads, unknown status codes.
var ErrProtocol = errors.New("client: protocol error")

// Options configures a [Client].
type Options struct {
	// JailID is sent with every command. Zero targets the host jail.
	JailID uint32
}

// Client is one connection to the daemon's control socket. Commands on a
// client are serialized; a client is safe for concurrent use.
type Client struct {
	opts Options

	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the control socket at path.
func Dial(path string, opts Options) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial control socket: %w", err)
	}

	return &Client{opts: opts, conn: conn}, nil
}

// Close drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.Close()
}

// roundTrip sends one command and decodes the reply status.
func (c *Client) roundTrip(code wire.Code, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := wire.Command{
		Version: wire.Version,
		Code:    code,
		JailID:  c.opts.JailID,
		Payload: payload,
	}

	if err := wire.WriteCommand(c.conn, cmd); err != nil {
		return nil, fmt.Errorf("%s: %w", code, err)
	}

	rp, err := wire.ReadReply(c.conn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", code, err)
	}

	if rp.Version != wire.Version {
		return nil, fmt.Errorf("%s: reply version %d: %w", code, rp.Version, ErrProtocol)
	}

	if rp.Status != wire.StatusOK {
		return nil, fmt.Errorf("%s: %w", code, statusErr(rp.Status))
	}

	return rp.Payload, nil
}

// FlushRuleset drops every live rule in the client's jail.
func (c *Client) FlushRuleset() error {
	_, err := c.roundTrip(wire.CmdFlush, nil)

	return err
}

// LoadRuleset stages a replacement ruleset. Nothing is staged on error.
func (c *Client) LoadRuleset(rules []wire.Rule) error {
	payload, err := wire.EncodeRuleset(rules)
	if err != nil {
		return fmt.Errorf("load ruleset: %w", err)
	}

	_, err = c.roundTrip(wire.CmdLoadRuleset, payload)

	return err
}

// Commit swaps the staged ruleset into the live index.
func (c *Client) Commit() error {
	_, err := c.roundTrip(wire.CmdCommit, nil)

	return err
}

// AddRule inserts one rule into the live index and returns its id.
func (c *Client) AddRule(rule wire.Rule) (uint32, error) {
	payload, err := wire.EncodeRule(rule)
	if err != nil {
		return 0, fmt.Errorf("add rule: %w", err)
	}

	reply, err := c.roundTrip(wire.CmdAddRule, payload)
	if err != nil {
		return 0, err
	}

	id, err := wire.DecodeRuleID(reply)
	if err != nil {
		return 0, fmt.Errorf("add rule reply: %w: %w", ErrProtocol, err)
	}

	return id, nil
}

// DelRule removes a live rule by id. Deleting a missing rule succeeds.
func (c *Client) DelRule(id uint32) error {
	_, err := c.roundTrip(wire.CmdDelRule, wire.EncodeRuleID(id))

	return err
}

// EnableRule marks a live rule active.
func (c *Client) EnableRule(id uint32) error {
	_, err := c.roundTrip(wire.CmdEnableRule, wire.EncodeRuleID(id))

	return err
}

// DisableRule marks a live rule inactive without removing it.
func (c *Client) DisableRule(id uint32) error {
	_, err := c.roundTrip(wire.CmdDisableRule, wire.EncodeRuleID(id))

	return err
}

// GetRule fetches a complete rule record, composing the four retrieval
// commands the protocol splits it across.
func (c *Client) GetRule(id uint32) (wire.Rule, error) {
	header, err := c.roundTrip(wire.CmdGetRule, wire.EncodeRuleID(id))
	if err != nil {
		return wire.Rule{}, err
	}

	rule, err := wire.DecodeRuleHeader(header)
	if err != nil {
		return wire.Rule{}, fmt.Errorf("get rule reply: %w: %w", ErrProtocol, err)
	}

	data, err := c.roundTrip(wire.CmdGetRuleData, wire.EncodeRuleID(id))
	if err != nil {
		return wire.Rule{}, err
	}

	if err := wire.DecodeRuleData(&rule, data); err != nil {
		return wire.Rule{}, fmt.Errorf("get rule data reply: %w: %w", ErrProtocol, err)
	}

	path, err := c.roundTrip(wire.CmdGetRulePath, wire.EncodeRuleID(id))
	if err != nil {
		return wire.Rule{}, err
	}

	rule.Path = string(path)

	if rule.Kind == engine.KindIntegriforce {
		hash, err := c.roundTrip(wire.CmdGetRuleHash, wire.EncodeRuleID(id))
		if err != nil {
			return wire.Rule{}, err
		}

		if len(hash) != rule.HashKind.DigestLen() {
			return wire.Rule{}, fmt.Errorf("get rule hash reply: %d bytes: %w", len(hash), ErrProtocol)
		}

		rule.Hash = hash
	}

	return rule, nil
}

// NumRules returns the jail's total and per-kind live rule counts.
func (c *Client) NumRules() (engine.Counts, error) {
	payload, err := c.roundTrip(wire.CmdGetNumRules, nil)
	if err != nil {
		return engine.Counts{}, err
	}

	counts, err := wire.DecodeCounts(payload)
	if err != nil {
		return engine.Counts{}, fmt.Errorf("num rules reply: %w: %w", ErrProtocol, err)
	}

	return counts, nil
}

// statusErr maps a reply status back onto the engine's sentinel errors so
// callers can use errors.Is across the boundary.
func statusErr(s wire.Status) error {
	switch s {
	case wire.StatusInvalidArgument:
		return engine.ErrInvalidArgument
	case wire.StatusPathResolution:
		return engine.ErrPathResolution
	case wire.StatusNotRegularFile:
		return engine.ErrNotRegularFile
	case wire.StatusUnsupported:
		return engine.ErrUnsupported
	case wire.StatusDuplicate:
		return engine.ErrDuplicate
	case wire.StatusNotFound:
		return engine.ErrNotFound
	case wire.StatusIntegrityViolation:
		return engine.ErrIntegrityViolation
	case wire.StatusImmutable:
		return engine.ErrImmutable
	case wire.StatusInternal:
		return engine.ErrInternal
	default:
		return fmt.Errorf("%w: status %d", ErrProtocol, s)
	}
}
