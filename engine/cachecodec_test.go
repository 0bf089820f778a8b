package engine

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/biograph/record"
)

func codecFixture() []*record.Record {
	h := testHasher()
	records := []*record.Record{
		makeRecord("NCBIGene:3778", "MONDO:0011122", "biolink:related_to", "Automat API"),
		makeRecord("NCBIGene:7289", "MONDO:0011122", "biolink:related_to", "CTD API"),
	}
	records[0].Publications = []string{"PMID:1", "PMID:2"}
	records[0].Attributes = map[string]any{"p_value": 0.01}
	h.Apply(records)
	return records
}

func fieldsFromChunks(chunks []string) map[string]string {
	fields := make(map[string]string, len(chunks))
	for i, c := range chunks {
		fields[strconv.Itoa(i)] = c
	}
	return fields
}

func TestCodecRoundTrip(t *testing.T) {
	in := codecFixture()

	chunks, err := encodeRecords(in, 100_000)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	out, dropped := decodeChunks(fieldsFromChunks(chunks))
	assert.Zero(t, dropped)
	require.Len(t, out, len(in))

	for i := range in {
		assert.Equal(t, in[i].Subject.Curie(), out[i].Subject.Curie())
		assert.Equal(t, in[i].Object.Curie(), out[i].Object.Curie())
		assert.Equal(t, in[i].Predicate, out[i].Predicate)
		assert.Equal(t, in[i].API, out[i].API)
		assert.Equal(t, in[i].Hash, out[i].Hash)
		assert.Equal(t, in[i].Publications, out[i].Publications)
		assert.Nil(t, out[i].Edge, "the edge back-reference is not serialized")
	}
	assert.Equal(t, 0.01, out[0].Attributes["p_value"])
}

func TestCodecTokensStraddleChunks(t *testing.T) {
	in := codecFixture()

	// A tiny chunk size forces every token to straddle boundaries
	chunks, err := encodeRecords(in, 16)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)
	for _, c := range chunks[:len(chunks)-1] {
		assert.Len(t, c, 16)
	}

	out, dropped := decodeChunks(fieldsFromChunks(chunks))
	assert.Zero(t, dropped)
	assert.Len(t, out, len(in))
}

func TestCodecChunkOrderIndependence(t *testing.T) {
	// HGETALL returns fields unordered; decode must reassemble by numeric
	// position, including double-digit positions.
	in := codecFixture()
	chunks, err := encodeRecords(in, 8)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 10)

	out, dropped := decodeChunks(fieldsFromChunks(chunks))
	assert.Zero(t, dropped)
	assert.Len(t, out, len(in))
}

func TestDecodeDropsCorruptTokens(t *testing.T) {
	in := codecFixture()
	chunks, err := encodeRecords(in[:1], 100_000)
	require.NoError(t, err)

	fields := fieldsFromChunks(chunks)
	fields["1"] = ",not-base64!!!"

	out, dropped := decodeChunks(fields)
	assert.Equal(t, 1, dropped, "the corrupt token is dropped, not fatal")
	require.Len(t, out, 1)
	assert.Equal(t, "NCBIGene:3778", out[0].Subject.Curie())
}

func TestDecodeEmptyFields(t *testing.T) {
	out, dropped := decodeChunks(map[string]string{})
	assert.Nil(t, out)
	assert.Zero(t, dropped)
}

func TestEncodeEmptyRecordList(t *testing.T) {
	chunks, err := encodeRecords(nil, 100_000)
	require.NoError(t, err)
	assert.Nil(t, chunks)
}
