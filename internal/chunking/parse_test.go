package chunking

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResponse_NamedArray(t *testing.T) {
	raws, err := ParseResponse(`{"chunks": [{"text": "A", "topic": "T1", "type": "intro"}, {"text": "B", "topic": "T2", "type": "body"}]}`)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.Equal(t, "A", raws[0].Text)
	require.Equal(t, "T1", *raws[0].Topic)
	require.Equal(t, "intro", raws[0].Type)
	require.Equal(t, "body", raws[1].Type)
}

func TestParseResponse_BareArray(t *testing.T) {
	raws, err := ParseResponse(`[{"text": "A", "topic": "T1", "type": "intro"}, {"text": "B", "topic": "T2", "type": "body"}]`)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.Equal(t, "B", raws[1].Text)
	require.Equal(t, "T2", *raws[1].Topic)
}

func TestParseResponse_SingleObject(t *testing.T) {
	raws, err := ParseResponse(`{"text": "FICO to include buy now, pay later data in new credit score models", "topic": "Article Title", "type": "intro"}`)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	require.Equal(t, "Article Title", *raws[0].Topic)
	require.Equal(t, "intro", raws[0].Type)
}

func TestParseResponse_EmbeddedFragment(t *testing.T) {
	raws, err := ParseResponse(`Sure! Here are the chunks:

[{"text": "first {part}", "type": "intro"}, {"text": "second", "type": "body"}]

Hope this helps.`)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.Equal(t, "first {part}", raws[0].Text)
}

func TestParseResponse_EmbeddedObjectWithBracketsInStrings(t *testing.T) {
	raws, err := ParseResponse(`prefix {"chunks": [{"text": "uses ] and } inside", "type": "body"}]} suffix`)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	require.Equal(t, "uses ] and } inside", raws[0].Text)
}

func TestParseResponse_Refusal(t *testing.T) {
	_, err := ParseResponse(`sorry, I cannot`)
	require.ErrorIs(t, err, ErrUnparseable)
}

func TestParseResponse_UnrelatedJSON(t *testing.T) {
	// Valid JSON without chunk text must not be accepted.
	_, err := ParseResponse(`{"error": "model overloaded"}`)
	require.ErrorIs(t, err, ErrUnparseable)
}

func TestParseResponse_Empty(t *testing.T) {
	_, err := ParseResponse("   \n ")
	require.ErrorIs(t, err, ErrUnparseable)
}

// Parsing any accepted shape, re-serializing through the canonical wrapper,
// and parsing again must be stable.
func TestParseResponse_RoundTrip(t *testing.T) {
	inputs := []string{
		`{"chunks": [{"text": "A", "topic": "T", "type": "intro"}]}`,
		`[{"text": "A", "topic": "T", "type": "intro"}, {"text": "B", "type": "body"}]`,
		`{"text": "A", "topic": "T", "type": "intro"}`,
		`noise before [{"text": "A", "type": "body"}] noise after`,
	}
	for _, in := range inputs {
		first, err := ParseResponse(in)
		require.NoError(t, err, in)

		canonical, err := json.Marshal(Response{Chunks: first})
		require.NoError(t, err)

		second, err := ParseResponse(string(canonical))
		require.NoError(t, err)
		require.Equal(t, first, second, in)
	}
}
