package fake

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pitwall/internal/game"
)

// Responder is a UDP server answering Assetto Corsa status queries with random data.
type Responder struct {
	bound net.Addr
	addr  string
	mu    sync.Mutex
}

// NewResponder creates a responder that will listen on addr once served.
func NewResponder(addr string) *Responder {
	return &Responder{addr: addr}
}

// String names the service for the supervisor.
func (r *Responder) String() string {
	return "fake-responder"
}

// Addr returns the bound address, or nil before Serve has started listening.
func (r *Responder) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.bound
}

// Serve answers queries until ctx is canceled.
func (r *Responder) Serve(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", r.addr)
	if err != nil {
		return fmt.Errorf("fake responder listen %s: %w", r.addr, err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	r.mu.Lock()
	r.bound = conn.LocalAddr()
	r.mu.Unlock()

	log.Info().Str("address", conn.LocalAddr().String()).Msg("Fake responder listening")

	buf := make([]byte, 64)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Debug().Err(err).Msg("Fake responder read failed")
			continue
		}

		if n < 4 || binary.LittleEndian.Uint32(buf[:4]) != game.Magic {
			log.Trace().Str("from", from.String()).Msg("Ignoring unknown packet")
			continue
		}

		if _, err := conn.WriteTo(randomReply(), from); err != nil {
			log.Debug().Err(err).Str("to", from.String()).Msg("Fake responder write failed")
		}
	}
}

func randomReply() []byte {
	maxPlayers := []int{12, 16, 24, 32}[rand.IntN(4)]
	name := fmt.Sprintf("Pitwall Test Server #%d", rand.IntN(100))

	return game.AppendReply(nil, name, pick(tracks), pick(sessions), rand.IntN(maxPlayers+1), maxPlayers)
}
