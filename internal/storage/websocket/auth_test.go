package websocket

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/volleyworks/volley/pkg/core"
	"github.com/volleyworks/volley/pkg/streaming"
)

func TestAuthenticator(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		secret     string
		wantQuery  string
		wantBearer bool
		wantErr    bool
	}{
		{"default is query", "", "s3", "s3", false, false},
		{"query", AuthQuery, "s3", "s3", false, false},
		{"jwt", AuthJWT, "s3", "", true, false},
		{"jwt without secret", AuthJWT, "", "", false, true},
		{"unknown", "kerberos", "s3", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := authenticator(tt.mode, tt.secret)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			u, _ := url.Parse("ws://collector/ingest")
			h := http.Header{}
			require.NoError(t, auth(u, h))

			assert.Equal(t, tt.wantQuery, u.Query().Get("secret"))
			assert.Equal(t, tt.wantBearer, strings.HasPrefix(h.Get("Authorization"), "Bearer "))
		})
	}

	_, err := authenticator("kerberos", "x")
	assert.ErrorIs(t, err, ErrUnknownAuth)
}

func TestSignToken(t *testing.T) {
	now := time.Now()
	token, err := signToken("s3", now)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte("s3"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.WithinDuration(t, now.Add(tokenTTL), claims.ExpiresAt.Time, time.Second)

	_, err = jwt.Parse(token, func(*jwt.Token) (any, error) { return []byte("wrong"), nil })
	assert.Error(t, err)
}

// binaryServer accepts only Bearer tokens signed with secret, decodes
// msgpack frames and acks session boundaries in msgpack.
func binaryServer(t *testing.T, secret string) (*httptest.Server, *sync.Map) {
	t.Helper()
	seen := &sync.Map{}
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if _, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return []byte(secret), nil }); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			kind, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if kind != ws.BinaryMessage {
				continue
			}
			var f struct {
				Type string `json:"type"`
			}
			if streaming.MsgPack.Decode(msg, &f) != nil {
				continue
			}
			seen.Store(f.Type, true)
			if f.Type == streaming.TypeStartSession || f.Type == streaming.TypeEndSession {
				data, _ := msgpack.Marshal(map[string]string{"type": "ack", "for": f.Type})
				_ = c.WriteMessage(ws.BinaryMessage, data)
			}
		}
	}))
	return srv, seen
}

func TestMsgPackOverJWT(t *testing.T) {
	srv, seen := binaryServer(t, "s3")
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s3", Encoding: "msgpack", Auth: AuthJWT}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{Name: "binary"}))
	require.NoError(t, b.RecordTick(&core.TickSummary{Tick: 1}))
	require.NoError(t, b.EndSession())

	for _, typ := range []string{streaming.TypeStartSession, streaming.TypeTick, streaming.TypeEndSession} {
		_, ok := seen.Load(typ)
		assert.True(t, ok, "server never saw %s", typ)
	}
}

func TestInit_Rejected(t *testing.T) {
	srv, _ := binaryServer(t, "right")
	defer srv.Close()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"wrong secret", Config{URL: wsURL(srv), Secret: "wrong", Auth: AuthJWT}},
		{"unknown encoding", Config{URL: wsURL(srv), Secret: "right", Encoding: "xml"}},
		{"unknown auth", Config{URL: wsURL(srv), Secret: "right", Auth: "basic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.cfg, nil)
			assert.Error(t, b.Init())
			assert.NoError(t, b.Close())
		})
	}
}
