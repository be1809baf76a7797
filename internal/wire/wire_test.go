package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardenedlabs/secadm/internal/engine"
)

func sampleIntegriforce() Rule {
	return Rule{
		Kind:       engine.KindIntegriforce,
		ID:         3,
		JailID:     7,
		Active:     true,
		Path:       "/bin/ls",
		MountPoint: "/",
		FileID:     123456,
		HashKind:   engine.HashSHA256,
		Hash:       bytes.Repeat([]byte{0xab}, engine.SHA256DigestLen),
	}
}

func samplePaX() Rule {
	return Rule{
		Kind:       engine.KindPaX,
		ID:         9,
		JailID:     2,
		Active:     false,
		Path:       "/usr/bin/example",
		MountPoint: "/usr",
		FileID:     42,
		Flags:      engine.ASLRDisable | engine.SegvguardEnable,
	}
}

func TestRuleRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule Rule
	}{
		{"integriforce sha256", sampleIntegriforce()},
		{
			"integriforce sha1",
			Rule{
				Kind:       engine.KindIntegriforce,
				ID:         1,
				JailID:     1,
				Active:     true,
				Path:       "/sbin/init",
				MountPoint: "/",
				FileID:     2,
				HashKind:   engine.HashSHA1,
				Hash:       bytes.Repeat([]byte{0x01}, engine.SHA1DigestLen),
			},
		},
		{"pax", samplePaX()},
		{
			"extended",
			Rule{
				Kind:       engine.KindExtended,
				ID:         0,
				JailID:     4,
				Active:     true,
				Path:       "/opt/thing",
				MountPoint: "/opt",
				FileID:     99,
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := EncodeRule(testCase.rule)
			require.NoError(t, err)

			decoded, err := DecodeRule(encoded)
			require.NoError(t, err)

			assert.Equal(t, testCase.rule, decoded)
		})
	}
}

func TestEncodeRuleRejectsInvalid(t *testing.T) {
	t.Parallel()

	longPath := "/" + string(bytes.Repeat([]byte{'a'}, engine.MaxPathLen))

	tests := []struct {
		name    string
		mutate  func(*Rule)
		wantErr error
	}{
		{"empty path", func(r *Rule) { r.Path = "" }, ErrBadPath},
		{"oversized path", func(r *Rule) { r.Path = longPath }, ErrBadPath},
		{"unknown kind", func(r *Rule) { r.Kind = 7 }, ErrBadKind},
		{"unknown hash kind", func(r *Rule) { r.HashKind = 9 }, ErrBadHash},
		{"digest length mismatch", func(r *Rule) { r.Hash = r.Hash[:10] }, ErrBadHash},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			rule := sampleIntegriforce()
			testCase.mutate(&rule)

			_, err := EncodeRule(rule)
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestDecodeRuleRejectsTruncation(t *testing.T) {
	t.Parallel()

	encoded, err := EncodeRule(sampleIntegriforce())
	require.NoError(t, err)

	for cut := range len(encoded) {
		_, err := DecodeRule(encoded[:cut])
		assert.Error(t, err, "decode of %d-byte prefix succeeded", cut)
	}

	// Trailing garbage is rejected too.
	_, err = DecodeRule(append(append([]byte(nil), encoded...), 0x00))
	require.ErrorIs(t, err, ErrTrailingData)
}

func TestRulesetRoundTrip(t *testing.T) {
	t.Parallel()

	rules := []Rule{sampleIntegriforce(), samplePaX()}

	payload, err := EncodeRuleset(rules)
	require.NoError(t, err)

	decoded, err := DecodeRuleset(payload)
	require.NoError(t, err)
	assert.Equal(t, rules, decoded)

	// Empty rulesets are legal.
	payload, err = EncodeRuleset(nil)
	require.NoError(t, err)

	decoded, err = DecodeRuleset(payload)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeRulesetRejectsBogusCount(t *testing.T) {
	t.Parallel()

	payload, err := EncodeRuleset([]Rule{samplePaX()})
	require.NoError(t, err)

	// Claim far more records than the payload can hold.
	payload[0] = 0xff
	payload[1] = 0xff

	_, err = DecodeRuleset(payload)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestCommandRoundTrip(t *testing.T) {
	t.Parallel()

	cmd := Command{
		Version: Version,
		Code:    CmdAddRule,
		JailID:  5,
		Payload: []byte{1, 2, 3},
	}

	var buf bytes.Buffer

	require.NoError(t, WriteCommand(&buf, cmd))

	decoded, err := ReadCommand(&buf)
	require.NoError(t, err)
	assert.Equal(t, cmd, decoded)
}

func TestReplyRoundTrip(t *testing.T) {
	t.Parallel()

	rp := Reply{Version: Version, Status: StatusDuplicate, Payload: []byte("x")}

	var buf bytes.Buffer

	require.NoError(t, WriteReply(&buf, rp))

	decoded, err := ReadReply(&buf)
	require.NoError(t, err)
	assert.Equal(t, rp, decoded)
}

func TestReadCommandRejectsOversizedFrame(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})

	_, err := ReadCommand(&buf)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestRuleDataRoundTrip(t *testing.T) {
	t.Parallel()

	for _, rule := range []Rule{sampleIntegriforce(), samplePaX()} {
		payload, err := EncodeRuleData(rule)
		require.NoError(t, err)

		partial := Rule{Kind: rule.Kind}
		require.NoError(t, DecodeRuleData(&partial, payload))

		assert.Equal(t, rule.MountPoint, partial.MountPoint)
		assert.Equal(t, rule.FileID, partial.FileID)
		assert.Equal(t, rule.HashKind, partial.HashKind)
		assert.Equal(t, rule.Flags, partial.Flags)
	}
}

func TestRuleHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	rule := samplePaX()

	header, err := DecodeRuleHeader(EncodeRuleHeader(rule))
	require.NoError(t, err)

	assert.Equal(t, rule.Kind, header.Kind)
	assert.Equal(t, rule.ID, header.ID)
	assert.Equal(t, rule.JailID, header.JailID)
	assert.Equal(t, rule.Active, header.Active)
}

func TestCountsRoundTrip(t *testing.T) {
	t.Parallel()

	counts := engine.Counts{Total: 5, Integriforce: 3, PaX: 2}

	decoded, err := DecodeCounts(EncodeCounts(counts))
	require.NoError(t, err)
	assert.Equal(t, counts, decoded)
}
