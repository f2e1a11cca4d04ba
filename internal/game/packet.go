package game

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/woozymasta/pitwall/internal/models"
)

// Magic opens every request and every reply.
const Magic uint32 = 0x00000001

// RequestSize is the fixed length of a query packet.
const RequestSize = 8

var (
	// ErrTimeout is returned when no reply arrived within the query window.
	ErrTimeout = errors.New("query timeout")

	// ErrBadMagic is returned when a reply does not start with Magic.
	ErrBadMagic = errors.New("invalid response magic number")

	// ErrTruncated is returned when a reply ends before all fields were read.
	ErrTruncated = errors.New("truncated response")
)

// RequestPacket returns the query packet: Magic followed by 4 zero bytes.
func RequestPacket() []byte {
	p := make([]byte, RequestSize)
	binary.LittleEndian.PutUint32(p[0:4], Magic)
	return p
}

// ParseReply decodes a server reply. Layout, in order: uint32 LE magic,
// NUL-terminated name, track and session, one byte current players, one byte max players.
func ParseReply(msg []byte, now time.Time) (models.Reply, error) {
	r := reader{buf: msg}

	magic, err := r.uint32()
	if err != nil {
		return models.Reply{}, fmt.Errorf("failed to parse server response: %w", err)
	}
	if magic != Magic {
		return models.Reply{}, fmt.Errorf("failed to parse server response: %w (0x%08x)", ErrBadMagic, magic)
	}

	var fields [3]string
	for i := range fields {
		if fields[i], err = r.cstring(); err != nil {
			return models.Reply{}, fmt.Errorf("failed to parse server response: %w", err)
		}
	}

	players, err := r.byte()
	if err != nil {
		return models.Reply{}, fmt.Errorf("failed to parse server response: %w", err)
	}
	maxPlayers, err := r.byte()
	if err != nil {
		return models.Reply{}, fmt.Errorf("failed to parse server response: %w", err)
	}

	return models.Reply{
		Name:           orDefault(fields[0], models.UnknownServer),
		Track:          orDefault(fields[1], models.UnknownTrack),
		Session:        orDefault(fields[2], models.UnknownSession),
		CurrentPlayers: int(players),
		MaxPlayers:     int(maxPlayers),
		Status:         models.StatusOnline,
		ObservedAt:     now,
	}, nil
}

// AppendReply encodes a reply in the wire layout read by ParseReply.
// Player counts above 255 are clamped.
func AppendReply(dst []byte, name, track, session string, players, maxPlayers int) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, Magic)
	for _, s := range []string{name, track, session} {
		dst = append(dst, s...)
		dst = append(dst, 0)
	}

	return append(dst, clampByte(players), clampByte(maxPlayers))
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) uint32() (uint32, error) {
	if len(r.buf)-r.off < 4 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) cstring() (string, error) {
	end := bytes.IndexByte(r.buf[r.off:], 0)
	if end < 0 {
		return "", ErrTruncated
	}
	s := strings.ToValidUTF8(string(r.buf[r.off:r.off+end]), "\uFFFD")
	r.off += end + 1
	return s, nil
}

func (r *reader) byte() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, ErrTruncated
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func clampByte(n int) byte {
	switch {
	case n < 0:
		return 0
	case n > 255:
		return 255
	}
	return byte(n)
}
