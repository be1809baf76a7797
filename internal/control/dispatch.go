// Package control implements the control channel: the command dispatcher
// that maps wire commands onto engine operations, and the unix-socket
// server the daemon runs it behind.
package control

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/hardenedlabs/secadm/internal/engine"
	"github.com/hardenedlabs/secadm/internal/wire"
)

// Dispatcher decodes commands, invokes the engine, and encodes replies.
// Every path produces a definite status code.
type Dispatcher struct {
	eng *engine.Engine
	log zerolog.Logger
}

// NewDispatcher wires a dispatcher to an engine.
func NewDispatcher(eng *engine.Engine, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{eng: eng, log: log}
}

// Dispatch executes one command and returns its reply.
func (d *Dispatcher) Dispatch(cmd wire.Command) wire.Reply {
	if cmd.Version != wire.Version {
		d.log.Warn().Uint32("version", cmd.Version).Msg("control: version mismatch")

		return reply(wire.StatusInvalidArgument, nil)
	}

	switch cmd.Code {
	case wire.CmdFlush:
		d.eng.FlushLive(cmd.JailID)

		return reply(wire.StatusOK, nil)

	case wire.CmdLoadRuleset:
		return d.loadRuleset(cmd)

	case wire.CmdAddRule:
		return d.addRule(cmd)

	case wire.CmdDelRule:
		id, err := wire.DecodeRuleID(cmd.Payload)
		if err != nil {
			return reply(wire.StatusInvalidArgument, nil)
		}

		d.eng.DeleteRule(cmd.JailID, id)

		return reply(wire.StatusOK, nil)

	case wire.CmdEnableRule, wire.CmdDisableRule:
		id, err := wire.DecodeRuleID(cmd.Payload)
		if err != nil {
			return reply(wire.StatusInvalidArgument, nil)
		}

		d.eng.SetActive(cmd.JailID, id, cmd.Code == wire.CmdEnableRule)

		return reply(wire.StatusOK, nil)

	case wire.CmdGetRule:
		return d.getRule(cmd, func(r wire.Rule) ([]byte, error) {
			return wire.EncodeRuleHeader(r), nil
		})

	case wire.CmdGetRuleData:
		return d.getRule(cmd, wire.EncodeRuleData)

	case wire.CmdGetRulePath:
		return d.getRule(cmd, func(r wire.Rule) ([]byte, error) {
			return []byte(r.Path), nil
		})

	case wire.CmdGetRuleHash:
		return d.getRule(cmd, func(r wire.Rule) ([]byte, error) {
			if r.Kind != engine.KindIntegriforce {
				return nil, engine.ErrInvalidArgument
			}

			return r.Hash, nil
		})

	case wire.CmdGetNumRules:
		return reply(wire.StatusOK, wire.EncodeCounts(d.eng.Counts(cmd.JailID)))

	case wire.CmdCommit:
		d.eng.CommitStaging(cmd.JailID)

		return reply(wire.StatusOK, nil)

	default:
		d.log.Warn().Stringer("code", cmd.Code).Msg("control: unknown command")

		return reply(wire.StatusInvalidArgument, nil)
	}
}

func (d *Dispatcher) addRule(cmd wire.Command) wire.Reply {
	rec, err := wire.DecodeRule(cmd.Payload)
	if err != nil {
		d.log.Warn().Err(err).Msg("control: malformed add_rule payload")

		return reply(wire.StatusInvalidArgument, nil)
	}

	spec, err := specFromWire(rec)
	if err != nil {
		return reply(errStatus(err), nil)
	}

	id, err := d.eng.AddRule(cmd.JailID, spec, engine.DestLive)
	if err != nil {
		return reply(errStatus(err), nil)
	}

	return reply(wire.StatusOK, wire.EncodeRuleID(id))
}

func (d *Dispatcher) loadRuleset(cmd wire.Command) wire.Reply {
	recs, err := wire.DecodeRuleset(cmd.Payload)
	if err != nil {
		d.log.Warn().Err(err).Msg("control: malformed load_ruleset payload")

		return reply(wire.StatusInvalidArgument, nil)
	}

	specs := make([]engine.Spec, len(recs))

	for i, rec := range recs {
		spec, err := specFromWire(rec)
		if err != nil {
			return reply(errStatus(err), nil)
		}

		specs[i] = spec
	}

	if err := d.eng.LoadRuleset(cmd.JailID, specs); err != nil {
		return reply(errStatus(err), nil)
	}

	return reply(wire.StatusOK, nil)
}

// getRule serves the four retrieval commands through one lookup and a
// per-command projection of the record.
func (d *Dispatcher) getRule(cmd wire.Command, project func(wire.Rule) ([]byte, error)) wire.Reply {
	id, err := wire.DecodeRuleID(cmd.Payload)
	if err != nil {
		return reply(wire.StatusInvalidArgument, nil)
	}

	rule, ok := d.eng.Rule(cmd.JailID, id)
	if !ok {
		return reply(wire.StatusNotFound, nil)
	}

	payload, err := project(ruleToWire(rule))
	if err != nil {
		return reply(errStatus(err), nil)
	}

	return reply(wire.StatusOK, payload)
}

func reply(status wire.Status, payload []byte) wire.Reply {
	return wire.Reply{Version: wire.Version, Status: status, Payload: payload}
}

// errStatus maps the engine error taxonomy onto reply codes. Unknown
// errors report as internal rather than leaking success.
func errStatus(err error) wire.Status {
	switch {
	case err == nil:
		return wire.StatusOK
	case errors.Is(err, engine.ErrInvalidArgument):
		return wire.StatusInvalidArgument
	case errors.Is(err, engine.ErrPathResolution):
		return wire.StatusPathResolution
	case errors.Is(err, engine.ErrNotRegularFile):
		return wire.StatusNotRegularFile
	case errors.Is(err, engine.ErrUnsupported):
		return wire.StatusUnsupported
	case errors.Is(err, engine.ErrDuplicate):
		return wire.StatusDuplicate
	case errors.Is(err, engine.ErrNotFound):
		return wire.StatusNotFound
	case errors.Is(err, engine.ErrIntegrityViolation):
		return wire.StatusIntegrityViolation
	case errors.Is(err, engine.ErrImmutable):
		return wire.StatusImmutable
	default:
		return wire.StatusInternal
	}
}
