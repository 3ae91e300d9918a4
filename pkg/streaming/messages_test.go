package streaming

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volleyworks/volley/pkg/core"
)

func TestNewAttacksPayload(t *testing.T) {
	p := NewAttacksPayload(3, []core.AttackCommand{{Attacker: 7, Target: 9, Damage: 12.5}})
	assert.Equal(t, AttacksPayload{
		Tick:    3,
		Attacks: []AttackPayload{{Attacker: 7, Target: 9, Damage: 12.5}},
	}, p)
}

func TestNewLifecyclePayload_JSON(t *testing.T) {
	p := NewLifecyclePayload(4, []core.LifecycleRequest{
		{Handle: 1, Reason: core.HitGround, Position: mgl32.Vec3{1, 0, 2}},
	})

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":4,"impacts":[{"projectile":1,"reason":"hit_ground","position":[1,0,2]}]}`, string(data))
}

func TestNewLifecyclePayload_Empty(t *testing.T) {
	data, err := json.Marshal(NewLifecyclePayload(1, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":1,"impacts":[]}`, string(data))
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "json", false},
		{"json", "json", false},
		{"msgpack", "msgpack", false},
		{"protobuf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := CodecByName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCodec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Name())
		})
	}
}

func TestCodec_Frames(t *testing.T) {
	payload := NewAttacksPayload(5, []core.AttackCommand{{Attacker: 1, Target: 2, Damage: 20}})

	for _, c := range []Codec{JSON, MsgPack} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Encode(TypeAttacks, payload)
			require.NoError(t, err)

			var got struct {
				Type    string         `json:"type"`
				Payload AttacksPayload `json:"payload"`
			}
			require.NoError(t, c.Decode(data, &got))
			assert.Equal(t, TypeAttacks, got.Type)
			assert.Equal(t, payload, got.Payload)

			var ack AckMessage
			reply, err := c.Encode("ack", nil)
			require.NoError(t, err)
			require.NoError(t, c.Decode(reply, &ack))
			assert.Equal(t, "ack", ack.Type)
		})
	}
}

func TestJSONCodec_MatchesEnvelope(t *testing.T) {
	data, err := JSON.Encode(TypeTick, map[string]int{"tick": 3})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeTick, env.Type)
	assert.JSONEq(t, `{"tick":3}`, string(env.Payload))
}
