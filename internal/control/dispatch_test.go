package control

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardenedlabs/secadm/internal/engine"
	"github.com/hardenedlabs/secadm/internal/wire"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()

	eng := engine.New(engine.Options{})
	t.Cleanup(eng.Close)

	return NewDispatcher(eng, zerolog.Nop())
}

func testRule(t *testing.T, dir, name, contents string) wire.Rule {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o700)) //nolint:gosec // test binary

	sum := sha256.Sum256([]byte(contents))

	return wire.Rule{
		Kind:     engine.KindIntegriforce,
		Active:   true,
		Path:     path,
		HashKind: engine.HashSHA256,
		Hash:     sum[:],
	}
}

func command(t *testing.T, code wire.Code, jid uint32, payload []byte) wire.Command {
	t.Helper()

	return wire.Command{Version: wire.Version, Code: code, JailID: jid, Payload: payload}
}

func TestDispatchRejectsVersionMismatch(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)

	rp := d.Dispatch(wire.Command{Version: wire.Version + 1, Code: wire.CmdFlush})
	assert.Equal(t, wire.StatusInvalidArgument, rp.Status)
}

func TestDispatchRejectsUnknownCommand(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)

	rp := d.Dispatch(command(t, wire.Code(999), 0, nil))
	assert.Equal(t, wire.StatusInvalidArgument, rp.Status)
}

func TestDispatchAddGetDelFlow(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)
	rule := testRule(t, t.TempDir(), "bin", "contents")

	encoded, err := wire.EncodeRule(rule)
	require.NoError(t, err)

	rp := d.Dispatch(command(t, wire.CmdAddRule, 1, encoded))
	require.Equal(t, wire.StatusOK, rp.Status)

	id, err := wire.DecodeRuleID(rp.Payload)
	require.NoError(t, err)

	// get_rule returns the header.
	rp = d.Dispatch(command(t, wire.CmdGetRule, 1, wire.EncodeRuleID(id)))
	require.Equal(t, wire.StatusOK, rp.Status)

	header, err := wire.DecodeRuleHeader(rp.Payload)
	require.NoError(t, err)
	assert.Equal(t, engine.KindIntegriforce, header.Kind)
	assert.Equal(t, uint32(1), header.JailID)
	assert.True(t, header.Active)

	// get_rule_path and get_rule_hash return the raw bytes.
	rp = d.Dispatch(command(t, wire.CmdGetRulePath, 1, wire.EncodeRuleID(id)))
	require.Equal(t, wire.StatusOK, rp.Status)
	assert.Equal(t, rule.Path, string(rp.Payload))

	rp = d.Dispatch(command(t, wire.CmdGetRuleHash, 1, wire.EncodeRuleID(id)))
	require.Equal(t, wire.StatusOK, rp.Status)
	assert.Equal(t, rule.Hash, rp.Payload)

	// Duplicate add is rejected with its own status.
	rp = d.Dispatch(command(t, wire.CmdAddRule, 1, encoded))
	assert.Equal(t, wire.StatusDuplicate, rp.Status)

	// Delete, then the rule is gone.
	rp = d.Dispatch(command(t, wire.CmdDelRule, 1, wire.EncodeRuleID(id)))
	require.Equal(t, wire.StatusOK, rp.Status)

	rp = d.Dispatch(command(t, wire.CmdGetRule, 1, wire.EncodeRuleID(id)))
	assert.Equal(t, wire.StatusNotFound, rp.Status)
}

func TestDispatchEnableDisable(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)
	rule := testRule(t, t.TempDir(), "bin", "contents")

	encoded, err := wire.EncodeRule(rule)
	require.NoError(t, err)

	rp := d.Dispatch(command(t, wire.CmdAddRule, 1, encoded))
	require.Equal(t, wire.StatusOK, rp.Status)

	id, err := wire.DecodeRuleID(rp.Payload)
	require.NoError(t, err)

	rp = d.Dispatch(command(t, wire.CmdDisableRule, 1, wire.EncodeRuleID(id)))
	require.Equal(t, wire.StatusOK, rp.Status)

	rp = d.Dispatch(command(t, wire.CmdGetRule, 1, wire.EncodeRuleID(id)))
	require.Equal(t, wire.StatusOK, rp.Status)

	header, err := wire.DecodeRuleHeader(rp.Payload)
	require.NoError(t, err)
	assert.False(t, header.Active)

	rp = d.Dispatch(command(t, wire.CmdEnableRule, 1, wire.EncodeRuleID(id)))
	require.Equal(t, wire.StatusOK, rp.Status)

	rp = d.Dispatch(command(t, wire.CmdGetRule, 1, wire.EncodeRuleID(id)))
	require.Equal(t, wire.StatusOK, rp.Status)

	header, err = wire.DecodeRuleHeader(rp.Payload)
	require.NoError(t, err)
	assert.True(t, header.Active)
}

func TestDispatchLoadCommitAndCounts(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)
	dir := t.TempDir()

	rules := []wire.Rule{
		testRule(t, dir, "a", "aaa"),
		testRule(t, dir, "b", "bbb"),
	}

	payload, err := wire.EncodeRuleset(rules)
	require.NoError(t, err)

	rp := d.Dispatch(command(t, wire.CmdLoadRuleset, 3, payload))
	require.Equal(t, wire.StatusOK, rp.Status)

	// Not yet live.
	rp = d.Dispatch(command(t, wire.CmdGetNumRules, 3, nil))
	require.Equal(t, wire.StatusOK, rp.Status)

	counts, err := wire.DecodeCounts(rp.Payload)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)

	rp = d.Dispatch(command(t, wire.CmdCommit, 3, nil))
	require.Equal(t, wire.StatusOK, rp.Status)

	rp = d.Dispatch(command(t, wire.CmdGetNumRules, 3, nil))
	require.Equal(t, wire.StatusOK, rp.Status)

	counts, err = wire.DecodeCounts(rp.Payload)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 2, counts.Integriforce)

	// Flush empties the live set again.
	rp = d.Dispatch(command(t, wire.CmdFlush, 3, nil))
	require.Equal(t, wire.StatusOK, rp.Status)

	rp = d.Dispatch(command(t, wire.CmdGetNumRules, 3, nil))
	require.Equal(t, wire.StatusOK, rp.Status)

	counts, err = wire.DecodeCounts(rp.Payload)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)
}

func TestDispatchMalformedPayloads(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)

	tests := []struct {
		name string
		cmd  wire.Command
	}{
		{"add with garbage", command(t, wire.CmdAddRule, 1, []byte{1, 2, 3})},
		{"del with short id", command(t, wire.CmdDelRule, 1, []byte{1})},
		{"get with no id", command(t, wire.CmdGetRule, 1, nil)},
		{"load with garbage", command(t, wire.CmdLoadRuleset, 1, []byte{9})},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			rp := d.Dispatch(testCase.cmd)
			assert.Equal(t, wire.StatusInvalidArgument, rp.Status)
		})
	}
}

func TestDispatchStatusMapping(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)
	dir := t.TempDir()

	// Path that does not resolve.
	missing := wire.Rule{
		Kind:     engine.KindIntegriforce,
		Active:   true,
		Path:     filepath.Join(dir, "missing"),
		HashKind: engine.HashSHA256,
		Hash:     make([]byte, engine.SHA256DigestLen),
	}

	encoded, err := wire.EncodeRule(missing)
	require.NoError(t, err)

	rp := d.Dispatch(command(t, wire.CmdAddRule, 1, encoded))
	assert.Equal(t, wire.StatusPathResolution, rp.Status)

	// Extended rules are unsupported.
	extended := wire.Rule{Kind: engine.KindExtended, Path: filepath.Join(dir, "x")}

	encoded, err = wire.EncodeRule(extended)
	require.NoError(t, err)

	rp = d.Dispatch(command(t, wire.CmdAddRule, 1, encoded))
	assert.Equal(t, wire.StatusUnsupported, rp.Status)

	// get_rule_hash on a pax rule is an argument error.
	bin := filepath.Join(dir, "bin")
	require.NoError(t, os.WriteFile(bin, []byte("x"), 0o700)) //nolint:gosec // test binary

	pax := wire.Rule{Kind: engine.KindPaX, Active: true, Path: bin, Flags: engine.ASLRDisable}

	encoded, err = wire.EncodeRule(pax)
	require.NoError(t, err)

	rp = d.Dispatch(command(t, wire.CmdAddRule, 1, encoded))
	require.Equal(t, wire.StatusOK, rp.Status)

	id, err := wire.DecodeRuleID(rp.Payload)
	require.NoError(t, err)

	rp = d.Dispatch(command(t, wire.CmdGetRuleHash, 1, wire.EncodeRuleID(id)))
	assert.Equal(t, wire.StatusInvalidArgument, rp.Status)
}
