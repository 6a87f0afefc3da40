package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mirthwood/server/internal/config"
	"github.com/mirthwood/server/internal/core/event"
	"github.com/mirthwood/server/internal/data"
	"github.com/mirthwood/server/internal/handler"
	gonet "github.com/mirthwood/server/internal/net"
	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/scripting"
	"github.com/mirthwood/server/internal/system"
	"github.com/mirthwood/server/internal/translate"
	"github.com/mirthwood/server/internal/world"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testMapList = `
maps:
  - name: arena
    tile_width: 16
    tile_height: 16
    spawn_x: 0
    spawn_y: 0
  - name: haven
    tile_width: 16
    tile_height: 16
    music: haven_theme
    spawn_x: 0
    spawn_y: 0
  - name: frontier
    tile_width: 16
    tile_height: 16
    spawn_x: 0
    spawn_y: 0
`

func testAssets() *data.MemCache {
	cache := data.NewMemCache()
	// arena: open floor, PvP everywhere. haven: open floor, PvP nowhere.
	cache.ColBuf["arena"] = []int32{8, 8, 0, 64}
	cache.NoPvPBuf["arena"] = []int32{8, 8, 1, 64}
	cache.ColBuf["haven"] = []int32{8, 8, 0, 64}
	cache.NoPvPBuf["haven"] = []int32{8, 8, 0, 64}
	// frontier: open floor, PvP on the west half only.
	cache.ColBuf["frontier"] = []int32{8, 8, 0, 64}
	frontier := []int32{8, 8}
	for i := 0; i < 8; i++ {
		frontier = append(frontier, 1, 4, 0, 4)
	}
	cache.NoPvPBuf["frontier"] = frontier
	return cache
}

type fakeStore struct {
	recs map[string]*world.PlayerRecord
}

func (f *fakeStore) Load(_ context.Context, name string) (*world.PlayerRecord, error) {
	rec, ok := f.recs[strings.ToLower(name)]
	if !ok {
		return nil, world.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) SaveState(_ context.Context, _ *world.PlayerRecord) error { return nil }

func (f *fakeStore) SaveFriends(_ context.Context, _ string, _ []string) error { return nil }

func (f *fakeStore) Inventory(_ context.Context, _ int64) ([]world.Item, error) { return nil, nil }

func (f *fakeStore) QuestLog(_ context.Context, _ int64) ([]world.QuestEntry, error) {
	return nil, nil
}

type env struct {
	t     *testing.T
	deps  *handler.Deps
	reg   *packet.Registry
	store *fakeStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Gameplay.SpawnMap = "arena"

	mapPath := filepath.Join(t.TempDir(), "maps.yaml")
	if err := os.WriteFile(mapPath, []byte(testMapList), 0644); err != nil {
		t.Fatal(err)
	}
	assets := testAssets()
	maps, err := data.LoadMapTable(mapPath, assets)
	if err != nil {
		t.Fatal(err)
	}
	scripts, err := scripting.NewEngine("", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(scripts.Close)

	store := &fakeStore{recs: make(map[string]*world.PlayerRecord)}
	deps := &handler.Deps{
		Config:     cfg,
		Log:        zap.NewNop(),
		World:      world.NewState(),
		Maps:       maps,
		Assets:     assets,
		Store:      store,
		Scripts:    scripts,
		Translator: translate.Noop{},
		Conns:      gonet.NewRegistry(),
		Rate:       gonet.NewRateTable(cfg.RateLimit.MaxRequests, 5*time.Second, true),
		Bus:        event.NewBus(),
	}
	reg := packet.NewRegistry(zap.NewNop())
	handler.RegisterAll(reg, deps)
	deps.Movement = system.NewMovement(deps)

	return &env{t: t, deps: deps, reg: reg, store: store}
}

func (e *env) connect() (*gonet.Conn, *websocket.Conn) {
	e.t.Helper()
	upgrader := websocket.Upgrader{}
	connCh := make(chan *gonet.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := gonet.NewConn(ws, "test", 64, 16<<20, 65536, 100, zap.NewNop())
		c.Start()
		connCh <- c
	}))
	e.t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		e.t.Fatal(err)
	}
	e.t.Cleanup(func() { client.Close() })

	sc := <-connCh
	e.t.Cleanup(sc.Close)
	e.deps.Conns.Add(sc)
	e.deps.Rate.Add(sc.ID)
	return sc, client
}

// seedStored registers a durable player row with the given login token.
func (e *env) seedStored(name, token, mapName string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		e.t.Fatal(err)
	}
	e.store.recs[strings.ToLower(name)] = &world.PlayerRecord{
		AccountID: int64(len(e.store.recs) + 1),
		Name:      name,
		TokenHash: string(hash),
		MapName:   mapName,
		Stats: world.Stats{
			Health: 100, MaxHealth: 100,
			Stamina: 100, MaxStamina: 100,
			Level: 1, MaxXP: 100,
		},
		Facing: 4,
	}
}

func authEnv(name, token string) packet.Envelope {
	return packet.Envelope{
		Type: packet.CAuth,
		Data: []byte(`{"name":"` + name + `","token":"` + token + `"}`),
	}
}

// readEnvelopes drains frames from the client until the deadline.
func readEnvelopes(t *testing.T, client *websocket.Conn, within time.Duration) []packet.Envelope {
	t.Helper()
	var envs []packet.Envelope
	client.SetReadDeadline(time.Now().Add(within))
	for {
		_, raw, err := client.ReadMessage()
		if err != nil {
			return envs
		}
		env, err := packet.Decode(raw)
		if err != nil {
			t.Fatalf("undecodable frame: %v", err)
		}
		envs = append(envs, env)
	}
}
