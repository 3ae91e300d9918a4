// Package streaming defines the wire messages of the live recording stream.
package streaming

import (
	"encoding/json"

	"github.com/volleyworks/volley/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeTick         = "tick"
	TypeAttacks      = "attacks"
	TypeLifecycle    = "lifecycle"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the session description.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// AttackPayload is one applied attack.
type AttackPayload struct {
	Attacker uint64  `json:"attacker"`
	Target   uint64  `json:"target"`
	Damage   float32 `json:"damage"`
}

// AttacksPayload carries the attacks drained in one tick.
type AttacksPayload struct {
	Tick    uint64          `json:"tick"`
	Attacks []AttackPayload `json:"attacks"`
}

// ImpactPayload is one deactivated arrow.
type ImpactPayload struct {
	Projectile uint64     `json:"projectile"`
	Reason     string     `json:"reason"`
	Position   [3]float32 `json:"position"`
}

// LifecyclePayload carries the lifecycle requests drained in one tick.
type LifecyclePayload struct {
	Tick    uint64          `json:"tick"`
	Impacts []ImpactPayload `json:"impacts"`
}

// NewAttacksPayload converts drained attack commands.
func NewAttacksPayload(tick uint64, cmds []core.AttackCommand) AttacksPayload {
	p := AttacksPayload{Tick: tick, Attacks: make([]AttackPayload, len(cmds))}
	for i, c := range cmds {
		p.Attacks[i] = AttackPayload{Attacker: uint64(c.Attacker), Target: uint64(c.Target), Damage: c.Damage}
	}
	return p
}

// NewLifecyclePayload converts drained lifecycle requests.
func NewLifecyclePayload(tick uint64, reqs []core.LifecycleRequest) LifecyclePayload {
	p := LifecyclePayload{Tick: tick, Impacts: make([]ImpactPayload, len(reqs))}
	for i, r := range reqs {
		p.Impacts[i] = ImpactPayload{Projectile: uint64(r.Handle), Reason: r.Reason.String(), Position: r.Position}
	}
	return p
}
