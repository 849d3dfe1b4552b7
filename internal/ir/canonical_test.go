package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{"a": "<b>&"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<b>&"}`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "é" as e + combining acute accent (NFD) vs precomposed (NFC)
	nfd := "cafe\u0301"
	nfc := "caf\u00e9"

	a, err := MarshalCanonical(map[string]any{"name": nfd})
	require.NoError(t, err)
	b, err := MarshalCanonical(map[string]any{"name": nfc})
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonicalStructTags(t *testing.T) {
	d := LinkDescriptor{
		ID:       "staking.set-nft-contract",
		Contract: "staking",
		Function: "set-nft-contract",
		Args:     []Arg{RefArg("nft-collection")},
	}

	result, err := MarshalCanonical(d)
	require.NoError(t, err)
	assert.Equal(t,
		`{"args":[{"ref":"nft-collection"}],"contract":"staking","function":"set-nft-contract","id":"staking.set-nft-contract"}`,
		string(result))
}
