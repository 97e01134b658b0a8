package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"driftnet/config"
	"driftnet/journal"
	"driftnet/netcode"
	"driftnet/netphys"
	"driftnet/physics"
	"driftnet/utils"
)

// boxFactory は座標2つをパラメータに取る動的ボディのファクトリです。
type boxFactory struct{}

func (boxFactory) CreateObstacle(params []byte) (physics.Obstacle, any, error) {
	var d netphys.Deserializer
	d.Receive(params)
	pos := physics.Vec2{X: d.ReadFloat(), Y: d.ReadFloat()}
	return physics.NewBody(pos), nil, nil
}

func boxParams(pos physics.Vec2) []byte {
	var s netphys.Serializer
	s.WriteFloat(pos.X)
	s.WriteFloat(pos.Y)
	return s.Bytes()
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadPeer(utils.GetEnvDefault("PEER_CONFIG", ""))
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	role := utils.GetEnvDefault("ROLE", "host")
	room := utils.GetEnvDefault("ROOM", "")

	controller := netphys.NewEventController(netcode.NewDialer(cfg.RelayURL))
	if cfg.JournalPath != "" {
		w, err := journal.NewWriter(cfg.JournalPath)
		if err != nil {
			slog.Error("failed to open journal", "err", err)
			os.Exit(1)
		}
		defer w.Close()
		controller.SetRecorder(w)
	}

	if role == "host" {
		err = controller.ConnectAsHost(ctx)
	} else {
		err = controller.ConnectAsClient(ctx, room)
	}
	if err != nil {
		slog.Error("failed to connect", "role", role, "err", err)
		os.Exit(1)
	}

	if err := run(ctx, controller, cfg); err != nil {
		slog.Error("session ended", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, controller *netphys.EventController, cfg config.PeerConfig) error {
	world := netphys.NewNetWorld(physics.NewWorld(physics.Vec2{Y: -9.8}))

	var err error
	var phys *netphys.PhysicsController
	var factoryID uint32
	spawned := false
	lastPlayers := -1

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	dt := float32(cfg.TickInterval.Seconds())

	for {
		select {
		case <-ctx.Done():
			controller.Disconnect()
			return nil
		case <-ticker.C:
			controller.UpdateNet(ctx)

			switch controller.Status() {
			case netphys.StatusConnected:
				if controller.IsHost() {
					if n := controller.NumPlayers(); n != lastPlayers {
						slog.Info("waiting in room", "room", controller.RoomID(), "players", n)
						lastPlayers = n
					}
					if controller.NumPlayers() >= cfg.NumPlayers {
						if err := controller.StartGame(); err != nil {
							return err
						}
					}
				}
			case netphys.StatusHandshake:
				if controller.ShortUID() != 0 && phys == nil {
					phys, err = controller.EnablePhysics(world, nil)
					if err != nil {
						return err
					}
					factoryID = phys.AttachFactory(boxFactory{})
					controller.MarkReady()
				}
			case netphys.StatusInGame:
				if controller.IsHost() && !spawned {
					for i := 0; i < 4; i++ {
						pos := physics.Vec2{X: float32(i), Y: 10}
						if _, _, err := phys.AddSharedObstacle(factoryID, boxParams(pos)); err != nil {
							return err
						}
					}
					spawned = true
					slog.Info("spawned shared obstacles", "count", 4)
				}
				world.Step(dt)
				for {
					e, ok := controller.PopInEvent()
					if !ok {
						break
					}
					slog.Debug("received event", "code", e.Code(), "tick", e.SentTick())
				}
			case netphys.StatusNetError:
				controller.Disconnect()
				return errors.New("connection lost")
			}
		}
	}
}
