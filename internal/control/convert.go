package control

import (
	"fmt"

	"github.com/hardenedlabs/secadm/internal/engine"
	"github.com/hardenedlabs/secadm/internal/wire"
)

// specFromWire turns an incoming record into an ingestion spec. The
// record's id, jail id, and resolved identity are ignored: the engine
// assigns ids and resolves paths itself.
func specFromWire(r wire.Rule) (engine.Spec, error) {
	switch r.Kind {
	case engine.KindIntegriforce:
		return engine.IntegriforceSpec{
			Path:     r.Path,
			HashKind: r.HashKind,
			Hash:     r.Hash,
		}, nil

	case engine.KindPaX:
		return engine.PaXSpec{Path: r.Path, Flags: r.Flags}, nil

	case engine.KindExtended:
		return engine.ExtendedSpec{Path: r.Path}, nil

	default:
		return nil, fmt.Errorf("rule kind %d: %w", r.Kind, engine.ErrInvalidArgument)
	}
}

// ruleToWire flattens an engine record for the retrieval commands.
func ruleToWire(r engine.Rule) wire.Rule {
	rec := wire.Rule{
		Kind:       r.Kind(),
		ID:         r.ID,
		JailID:     r.JailID,
		Active:     r.Active,
		Path:       r.Data.Path(),
		MountPoint: r.Data.Ident().MountPoint,
		FileID:     r.Data.Ident().FileID,
	}

	switch data := r.Data.(type) {
	case engine.Integriforce:
		rec.HashKind = data.HashKind
		rec.Hash = data.Hash
	case engine.PaX:
		rec.Flags = data.Flags
	}

	return rec
}
