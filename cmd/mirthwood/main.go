package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mirthwood/server/internal/config"
	"github.com/mirthwood/server/internal/core/event"
	coresys "github.com/mirthwood/server/internal/core/system"
	"github.com/mirthwood/server/internal/data"
	"github.com/mirthwood/server/internal/handler"
	gonet "github.com/mirthwood/server/internal/net"
	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/persist"
	"github.com/mirthwood/server/internal/scripting"
	"github.com/mirthwood/server/internal/system"
	"github.com/mirthwood/server/internal/translate"
	"github.com/mirthwood/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            Mirthwood  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       即時世界伺服器 · Go 實作            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(編號: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	// Use rune count for CJK width calculation (each CJK char = 2 columns)
	displayWidth := 0
	for _, r := range title {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	lineLen := 46 - displayWidth - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	displayWidth := 0
	for _, r := range label {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	dotsLen := 42 - displayWidth - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load environment and config
	_ = godotenv.Load()

	cfgPath := "config/server.toml"
	if p := os.Getenv("MIRTHWOOD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Connect to PostgreSQL and run migrations
	printSection("資料庫")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL 連線成功")

	if cfg.Persistence.AutoMigrate {
		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("資料庫遷移完成")
	}
	fmt.Println()

	playerRepo := persist.NewPlayerRepo(db)

	// 4. Load world data
	printSection("資料載入")

	assets := data.NewDirCache(cfg.Paths.AssetDir)
	maps, err := data.LoadMapTable(cfg.Paths.MapList, assets)
	if err != nil {
		return fmt.Errorf("load map table: %w", err)
	}
	printStat("地圖", maps.Count())

	luaEngine, err := scripting.NewEngine(cfg.Paths.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("Lua 腳本載入完成")

	var translator translate.Translator = translate.Noop{}
	if cfg.Translation.Endpoint != "" {
		translator = translate.NewHTTPTranslator(
			cfg.Translation.Endpoint,
			time.Duration(cfg.Translation.TimeoutMs)*time.Millisecond,
			log,
		)
		printOK("翻譯服務已啟用")
	}
	fmt.Println()

	// 5. Wire core state and dependencies
	worldState := world.NewState()
	conns := gonet.NewRegistry()
	rate := gonet.NewRateTable(
		cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.CooldownWindows)*time.Duration(cfg.RateLimit.DecayIntervalMs)*time.Millisecond,
		cfg.RateLimit.Enabled,
	)
	bus := event.NewBus()

	deps := &handler.Deps{
		Config:     cfg,
		Log:        log,
		World:      worldState,
		Maps:       maps,
		Assets:     assets,
		Store:      playerRepo,
		Scripts:    luaEngine,
		Translator: translator,
		Conns:      conns,
		Rate:       rate,
		Bus:        bus,
	}

	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, deps)

	// Connection count fan-out: emitted by the tick systems, delivered to
	// every subscriber of the topic on the next tick.
	event.Subscribe(bus, func(ev event.ConnectionCountChanged) {
		conns.Publish(packet.TopicConnectionCount, packet.New(packet.SConnectionCount, struct {
			Count int `json:"count"`
		}{Count: ev.Count}))
	})

	// 6. Network server
	netServer := gonet.NewServer(
		cfg.Network.BindAddress,
		cfg.Network.InQueueSize,
		cfg.Network.BufferCeilingBytes,
		cfg.Network.MaxPayloadBytes,
		cfg.RateLimit.AuthPerMinute,
		log,
	)
	go netServer.ListenAndServe()

	// 7. Systems
	runner := coresys.NewRunner()
	inputSys := system.NewInput(deps, pktReg, netServer)
	movementSys := system.NewMovement(deps)
	deps.Movement = movementSys
	persistSys := system.NewPersistence(deps)

	runner.Register(inputSys)
	runner.Register(system.NewBackpressure(deps, inputSys))
	runner.Register(system.NewRateDecay(deps))
	runner.Register(movementSys)
	runner.Register(system.NewServerTick(deps))
	runner.Register(persistSys)
	runner.Register(system.NewCleanup(deps, netServer))

	// 8. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	tickInterval := cfg.Network.TickInterval()
	framePeriod := cfg.Movement.FramePeriod()
	ticker := time.NewTicker(framePeriod)
	defer ticker.Stop()

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("監聽位址 %s", netServer.Addr()))
	printReady(fmt.Sprintf("遊戲迴圈啟動 (tick: %s, 移動: %dHz)", tickInterval, cfg.Movement.FrameRate))
	fmt.Println()

	// The loop runs at the movement frame rate. Input through movement runs
	// every frame; the slower phases (server tick, persistence, cleanup) run
	// once per main tick with the accumulated elapsed time.
	lastTime := time.Now()
	var sinceFull time.Duration
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			elapsed := now.Sub(lastTime)
			lastTime = now
			sinceFull += elapsed

			runner.TickPhases(coresys.PhaseInput, coresys.PhaseUpdate, elapsed)

			if sinceFull >= tickInterval {
				bus.SwapBuffers()
				runner.TickPhases(coresys.PhasePostUpdate, coresys.PhaseCleanup, sinceFull)
				bus.DispatchAll()
				sinceFull = 0
			}

		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			persistSys.SaveAll()
			netServer.Shutdown()
			log.Info("伺服器已停止")
			return nil
		}
	}
}

func newLogger(cfg config.Logging) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.File == "" {
		return zapCfg.Build()
	}

	// File sink with rotation, in addition to stderr.
	console, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}),
		level,
	)
	return console.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}
