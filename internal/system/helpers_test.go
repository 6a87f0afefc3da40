package system

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
	"github.com/mirthwood/server/internal/translate"
	"github.com/mirthwood/server/internal/world"
	"go.uber.org/zap"
)

const testMapList = `
maps:
  - name: arena
    tile_width: 16
    tile_height: 16
    spawn_x: 0
    spawn_y: 0
    warps:
      - name: exit
        x: 32
        y: 32
        width: 16
        height: 16
        to_map: lobby
        to_x: 0
        to_y: 0
      - name: loop
        x: -48
        y: 32
        width: 16
        height: 16
        to_map: arena
        to_x: 0
        to_y: 0
  - name: lobby
    tile_width: 16
    tile_height: 16
    spawn_x: 0
    spawn_y: 0
`

// testAssets: arena is an 8x8 grid walled at the border with PvP allowed
// everywhere; lobby is fully open with PvP denied everywhere.
func testAssets() *data.MemCache {
	cache := data.NewMemCache()
	buf := []int32{8, 8}
	for y := int32(0); y < 8; y++ {
		for x := int32(0); x < 8; x++ {
			var v int32
			if x == 0 || y == 0 || x == 7 || y == 7 {
				v = 1
			}
			buf = append(buf, v, 1)
		}
	}
	cache.ColBuf["arena"] = buf
	cache.NoPvPBuf["arena"] = []int32{8, 8, 1, 64}
	cache.ColBuf["lobby"] = []int32{8, 8, 0, 64}
	cache.NoPvPBuf["lobby"] = []int32{8, 8, 0, 64}
	return cache
}

type fakeStore struct {
	recs  map[string]*world.PlayerRecord
	saved []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]*world.PlayerRecord)}
}

func (f *fakeStore) Load(_ context.Context, name string) (*world.PlayerRecord, error) {
	rec, ok := f.recs[strings.ToLower(name)]
	if !ok {
		return nil, world.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) SaveState(_ context.Context, rec *world.PlayerRecord) error {
	f.saved = append(f.saved, rec.Name)
	return nil
}

func (f *fakeStore) SaveFriends(_ context.Context, _ string, _ []string) error { return nil }

func (f *fakeStore) Inventory(_ context.Context, _ int64) ([]world.Item, error) { return nil, nil }

func (f *fakeStore) QuestLog(_ context.Context, _ int64) ([]world.QuestEntry, error) {
	return nil, nil
}

type testEnv struct {
	t        *testing.T
	deps     *handler.Deps
	reg      *packet.Registry
	movement *Movement
	store    *fakeStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Gameplay.SpawnMap = "arena"
	cfg.Network.DeferRetryStepMs = 0

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

	store := newFakeStore()
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

	movement := NewMovement(deps)
	deps.Movement = movement

	return &testEnv{t: t, deps: deps, reg: reg, movement: movement, store: store}
}

// connect opens a real websocket pair and returns the server-side connection
// plus the raw client socket.
func (e *testEnv) connect() (*gonet.Conn, *websocket.Conn) {
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
	return sc, client
}

// addPlayer registers an authenticated in-world session backed by a live
// connection.
func (e *testEnv) addPlayer(name string, x, y float64) (*world.PlayerInfo, *websocket.Conn) {
	e.t.Helper()
	sc, client := e.connect()
	sc.Authed = true
	e.deps.Conns.Add(sc)
	e.deps.Rate.Add(sc.ID)

	p := &world.PlayerInfo{
		ConnID:  sc.ID,
		Conn:    sc,
		Name:    name,
		MapName: "arena",
		X:       x,
		Y:       y,
		Stats: world.Stats{
			Health: 100, MaxHealth: 100,
			Stamina: 100, MaxStamina: 100,
			Level: 1, MaxXP: 100,
		},
	}
	e.deps.World.AddPlayer(p)
	return p, client
}

// readTypes drains envelopes from the client until the deadline, returning
// the packet types seen.
func readTypes(t *testing.T, client *websocket.Conn, within time.Duration) []string {
	t.Helper()
	var types []string
	client.SetReadDeadline(time.Now().Add(within))
	for {
		_, raw, err := client.ReadMessage()
		if err != nil {
			return types
		}
		env, err := packet.Decode(raw)
		if err != nil {
			t.Fatalf("client received undecodable frame: %v", err)
		}
		types = append(types, env.Type)
	}
}

func countType(types []string, typ string) int {
	n := 0
	for _, got := range types {
		if got == typ {
			n++
		}
	}
	return n
}
