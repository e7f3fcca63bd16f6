// Package icy reads in-band ("ICY") stream metadata from Shoutcast and
// Icecast style HTTP audio streams.
//
// A server that honours the "Icy-Metadata: 1" request header advertises a
// metadata interval N in the icy-metaint response header. The body then
// alternates N bytes of audio with one length byte L followed by L*16 bytes of
// metadata text such as "StreamTitle='Artist - Song';StreamUrl='https://example.com';".
//
// [ParseTitle] and [ReadMetadata] are pure functions over bytes; [Client]
// performs the HTTP exchange.
package icy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// MetadataBlockSize is the multiplier applied to the metadata length byte.
const MetadataBlockSize = 16

var streamTitleRe = regexp.MustCompile(`StreamTitle='([^;]*)';`)

// ErrNoMetadata is returned by [ReadMetadata] when the metadata block is empty.
var ErrNoMetadata = errors.New("icy: empty metadata block")

// ParseTitle extracts the StreamTitle value from a metadata block. Invalid
// UTF-8 is dropped and NUL padding trimmed. The boolean is false when the
// field is missing or empty after trimming.
func ParseTitle(meta []byte) (string, bool) {
	meta = bytes.TrimRight(meta, "\x00")
	text := strings.ToValidUTF8(string(meta), "")
	text = strings.TrimSpace(text)

	m := streamTitleRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	title := strings.TrimSpace(m[1])
	if title == "" {
		return "", false
	}
	return title, true
}

// ReadMetadata skips metaint bytes of audio from r, reads the length byte and
// returns the following metadata block. It returns [ErrNoMetadata] when the
// length byte is zero.
func ReadMetadata(r io.Reader, metaint int) ([]byte, error) {
	if metaint <= 0 {
		return nil, fmt.Errorf("icy: invalid metadata interval %d", metaint)
	}
	if _, err := io.CopyN(io.Discard, r, int64(metaint)); err != nil {
		return nil, fmt.Errorf("icy: skip audio payload: %w", err)
	}

	var lb [1]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return nil, fmt.Errorf("icy: read length byte: %w", err)
	}
	n := int(lb[0]) * MetadataBlockSize
	if n == 0 {
		return nil, ErrNoMetadata
	}

	meta := make([]byte, n)
	if _, err := io.ReadFull(r, meta); err != nil {
		return nil, fmt.Errorf("icy: read metadata block: %w", err)
	}
	return meta, nil
}
