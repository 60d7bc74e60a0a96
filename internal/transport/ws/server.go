package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"opendoors.ai/internal/protocol"
	"opendoors.ai/internal/sim/world"
	"opendoors.ai/internal/sim/world/logic/mathx"
)

type Config struct {
	// CommandTimeout bounds how long a command waits for the world loop.
	CommandTimeout time.Duration
	// AllowRemote accepts connections from non-loopback addresses.
	AllowRemote bool
	// EventQueue is the per-connection audit event buffer.
	EventQueue int
}

type Server struct {
	world *world.World
	hub   *Hub
	log   *zap.Logger
	cfg   Config

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, hub *Hub, logger *zap.Logger, cfg Config) *Server {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 2 * time.Second
	}
	if cfg.EventQueue <= 0 {
		cfg.EventQueue = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		world: w,
		hub:   hub,
		log:   logger.Named("ws"),
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.cfg.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		log := s.log.With(zap.String("remote", r.RemoteAddr))
		log.Info("control client connected")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		replies := make(chan []byte, 8)
		events := make(chan []byte, s.cfg.EventQueue)
		if s.hub != nil {
			unsubscribe := s.hub.subscribe(events)
			defer unsubscribe()
		}

		// Writer goroutine.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-replies:
				case b = <-events:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			reply := s.handle(ctx, msg)
			b, err := json.Marshal(reply)
			if err != nil {
				log.Error("encode reply", zap.Error(err))
				continue
			}
			select {
			case replies <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeDone:
		case <-time.After(500 * time.Millisecond):
		}
		log.Info("control client disconnected")
	}
}

// handle decodes one command, runs it on the world loop and returns the reply.
func (s *Server) handle(ctx context.Context, msg []byte) any {
	cmd, err := protocol.DecodeCommand(msg)
	if err != nil {
		return protocol.Error(peekID(msg), protocol.ErrProtoBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	var reply any
	if err := s.world.Do(ctx, func() { reply = s.execute(cmd) }); err != nil {
		if errors.Is(err, world.ErrStopped) || errors.Is(err, context.DeadlineExceeded) {
			return protocol.Error(cmd.ID, protocol.ErrWorldBusy, "world unavailable")
		}
		return protocol.Error(cmd.ID, protocol.ErrInternal, err.Error())
	}
	return reply
}

// execute runs on the world loop goroutine.
func (s *Server) execute(cmd protocol.CommandMsg) any {
	pos := mathx.FromArray(cmd.Pos)
	ack := protocol.Ack(cmd.ID, s.world.CurrentTick())

	var err error
	switch cmd.Type {
	case protocol.TypeTriggerSwitch:
		var on bool
		on, err = s.world.TriggerSwitch(pos)
		ack.On = &on
	case protocol.TypeActivateDoor:
		var open bool
		open, err = s.world.ActivateDoor(cmd.Actor, pos)
		ack.Open = &open
	case protocol.TypeSetLocked:
		var locked bool
		locked, err = s.world.SetDoorLocked(cmd.Actor, pos, *cmd.Locked)
		ack.Locked = &locked
	case protocol.TypeResetPrefab:
		err = s.world.ResetPrefab(cmd.PrefabID)
	case protocol.TypeStartQuest:
		ack.Prefabs = s.world.StartQuest(pos, cmd.Tags)
	case protocol.TypeDoorState:
		var d world.DoorInfo
		d, err = s.world.DoorState(pos)
		if err == nil {
			return protocol.DoorMsg{
				Type:            protocol.TypeDoor,
				ProtocolVersion: protocol.Version,
				ID:              cmd.ID,
				Pos:             d.Pos.ToArray(),
				Block:           d.Block,
				Owner:           d.Owner,
				Locked:          d.Locked,
				Open:            d.Open,
				TemplateLocked:  d.TemplateLocked,
			}
		}
	}
	if err != nil {
		s.log.Debug("command rejected", zap.String("type", cmd.Type), zap.String("id", cmd.ID), zap.Error(err))
		return protocol.Error(cmd.ID, world.ErrorCode(err), err.Error())
	}
	return ack
}

// peekID recovers the request id from a command that failed validation.
func peekID(msg []byte) string {
	var v struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(msg, &v)
	return v.ID
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
