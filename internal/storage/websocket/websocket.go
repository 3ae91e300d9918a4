// Package websocket streams simulation records to a remote collector over a
// WebSocket connection.
package websocket

import (
	"errors"
	"log/slog"

	"github.com/volleyworks/volley/pkg/core"
	"github.com/volleyworks/volley/pkg/streaming"
)

// Auth modes for the dial.
const (
	AuthQuery = "query" // ?secret=<secret>
	AuthJWT   = "jwt"   // Authorization: Bearer <HS256 token signed with secret>
)

var ErrUnknownAuth = errors.New("unknown websocket auth mode")

type Config struct {
	URL      string
	Secret   string
	Encoding string // json (default) or msgpack
	Auth     string // AuthQuery (default) or AuthJWT
}

// Backend streams session data over WebSocket. Session boundaries wait for
// a server ack; per-tick records are fire-and-forget.
type Backend struct {
	conn  *connection
	cfg   Config
	codec streaming.Codec
}

func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn:  newConnection(logger.With("backend", "websocket")),
		cfg:   cfg,
		codec: streaming.JSON,
	}
}

// Init resolves the encoding and auth mode, then connects.
func (b *Backend) Init() error {
	codec, err := streaming.CodecByName(b.cfg.Encoding)
	if err != nil {
		return err
	}
	auth, err := authenticator(b.cfg.Auth, b.cfg.Secret)
	if err != nil {
		return err
	}
	b.codec = codec
	b.conn.codec = codec
	return b.conn.dial(b.cfg.URL, auth)
}

func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many messages were discarded on a full send queue.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

func (b *Backend) send(msgType string, payload any) error {
	data, err := b.codec.Encode(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession sends the session description and waits for the ack. The
// frame is replayed on every reconnect until EndSession.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := b.codec.Encode(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}

	b.conn.setCachedStart(data)
	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

func (b *Backend) EndSession() error {
	data, err := b.codec.Encode(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)

	// cleared regardless of error
	b.conn.setCachedStart(nil)
	return err
}

func (b *Backend) RecordTick(t *core.TickSummary) error {
	return b.send(streaming.TypeTick, t)
}

func (b *Backend) RecordAttacks(tick uint64, cmds []core.AttackCommand) error {
	if len(cmds) == 0 {
		return nil
	}
	return b.send(streaming.TypeAttacks, streaming.NewAttacksPayload(tick, cmds))
}

func (b *Backend) RecordLifecycle(tick uint64, reqs []core.LifecycleRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	return b.send(streaming.TypeLifecycle, streaming.NewLifecyclePayload(tick, reqs))
}
