package engine

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/c360/biograph/errors"
	"github.com/c360/biograph/record"
)

// recordDelimiter separates encoded record tokens inside the chunk stream.
// Comma is safe: it never occurs in base64url output.
const recordDelimiter = ","

// encodeRecord serializes one record through the pipeline:
// JSON -> LZ4 -> base64url. The execution-edge back-reference is dropped by
// the record's json tags and restored on decode.
func encodeRecord(r *record.Record) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", errors.Wrap(err, "cachecodec", "encodeRecord", "record serialization")
	}

	var compressed bytes.Buffer
	w := lz4.NewWriter(&compressed)
	if _, err := w.Write(raw); err != nil {
		return "", errors.Wrap(err, "cachecodec", "encodeRecord", "compression")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "cachecodec", "encodeRecord", "compression flush")
	}

	return base64.RawURLEncoding.EncodeToString(compressed.Bytes()), nil
}

// decodeRecord reverses the pipeline for one token
func decodeRecord(token string) (*record.Record, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCacheCorrupt, "cachecodec", "decodeRecord", "base64 decoding")
	}

	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(compressed)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCacheCorrupt, "cachecodec", "decodeRecord", "decompression")
	}

	var r record.Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.Wrap(errors.ErrCacheCorrupt, "cachecodec", "decodeRecord", "record parsing")
	}
	return &r, nil
}

// encodeRecords produces the ordered chunk sequence for a record list.
// Tokens are delimiter-joined then sliced into chunks of at most chunkSize
// bytes; a token may straddle a chunk boundary, the trailing remainder is
// flushed as the final chunk.
func encodeRecords(records []*record.Record, chunkSize int) ([]string, error) {
	tokens := make([]string, 0, len(records))
	for _, r := range records {
		token, err := encodeRecord(r)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	stream := strings.Join(tokens, recordDelimiter)
	if stream == "" {
		return nil, nil
	}

	var chunks []string
	for len(stream) > chunkSize {
		chunks = append(chunks, stream[:chunkSize])
		stream = stream[chunkSize:]
	}
	chunks = append(chunks, stream)
	return chunks, nil
}

// decodeChunks reassembles the chunk stream and decodes every token. A
// token that fails to decode is dropped and reported through the returned
// count; it never fails the whole read.
func decodeChunks(fields map[string]string) (records []*record.Record, dropped int) {
	// Fields are numerically keyed chunk positions
	positions := make([]int, 0, len(fields))
	byPosition := make(map[int]string, len(fields))
	for k, v := range fields {
		pos, err := strconv.Atoi(k)
		if err != nil {
			dropped++
			continue
		}
		positions = append(positions, pos)
		byPosition[pos] = v
	}
	sort.Ints(positions)

	var stream strings.Builder
	for _, pos := range positions {
		stream.WriteString(byPosition[pos])
	}
	if stream.Len() == 0 {
		return nil, dropped
	}

	for _, token := range strings.Split(stream.String(), recordDelimiter) {
		if token == "" {
			continue
		}
		r, err := decodeRecord(token)
		if err != nil {
			dropped++
			continue
		}
		records = append(records, r)
	}
	return records, dropped
}
