package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/roastworks/roaster-gateway/internal/manager"
	"github.com/roastworks/roaster-gateway/internal/simlifecycle"
	"github.com/roastworks/roaster-gateway/internal/stream"
	"github.com/roastworks/roaster-gateway/internal/telemetry"
)

// newRouter builds the daemon's HTTP surface: a health check and the
// /live/{machine_id} WebSocket endpoint that streams temperatures and
// accepts control/session commands. Everything else an operator needs
// (catalog CRUD, machine persistence, schedules) is out of scope here.
func newRouter(mgr *manager.Manager, lifecycle *simlifecycle.Lifecycle, store *telemetry.Store, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/live/{machine_id}", liveHandler(mgr, store, logger))

	return r
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func liveHandler(mgr *manager.Manager, store *telemetry.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		machineID := chi.URLParam(r, "machine_id")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		mi, ok := mgr.GetInstance(machineID)
		if !ok {
			errMsg := stream.NewErrorMessage("MACHINE_NOT_FOUND", "Machine '"+machineID+"' is not connected", false)
			_ = conn.WriteJSON(errMsg)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(4004, "machine not connected"), time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}

		driverState := mi.Driver().State()
		connMsg := stream.NewConnectionMessage(string(driverState), mi.Driver().Info().Name, string(driverState))
		if err := conn.WriteJSON(connMsg); err != nil {
			_ = conn.Close()
			return
		}
		stateMsg := stream.NewStateMessage(string(mi.Session().State()), string(mi.Session().State()))
		if err := conn.WriteJSON(stateMsg); err != nil {
			_ = conn.Close()
			return
		}

		observerID := uuid.NewString()
		observer, err := mgr.Attach(machineID, observerID, conn)
		if err != nil {
			_ = conn.Close()
			return
		}
		defer mgr.Detach(machineID, observer)

		readLoop(r.Context(), mgr, store, logger, machineID, observer)
	}
}

func readLoop(ctx context.Context, mgr *manager.Manager, store *telemetry.Store, logger *zap.Logger, machineID string, observer *stream.Observer) {
	conn := observer.Conn()
	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			_ = conn.WriteJSON(stream.NewErrorMessage("INVALID_MESSAGE", "malformed JSON frame", true))
			continue
		}

		switch envelope.Type {
		case stream.TypeControl:
			handleControl(ctx, mgr, machineID, conn, raw)
		case stream.TypeCommand:
			handleCommand(ctx, mgr, store, logger, machineID, observer, raw)
		default:
			_ = conn.WriteJSON(stream.NewErrorMessage("INVALID_MESSAGE", "Unknown message type: "+envelope.Type, true))
		}
	}
}

func handleControl(ctx context.Context, mgr *manager.Manager, machineID string, conn *websocket.Conn, raw json.RawMessage) {
	var cmd stream.ControlCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		_ = conn.WriteJSON(stream.NewErrorMessage("INVALID_MESSAGE", "malformed control frame", true))
		return
	}
	if cmd.Value < 0.0 || cmd.Value > 1.0 {
		_ = conn.WriteJSON(stream.NewErrorMessage("INVALID_MESSAGE", "Control value must be 0.0-1.0", true))
		return
	}
	ack := mgr.HandleControl(ctx, machineID, cmd.Channel, cmd.Value, cmd.Enabled)
	_ = conn.WriteJSON(ack)
}

func handleCommand(ctx context.Context, mgr *manager.Manager, store *telemetry.Store, logger *zap.Logger, machineID string, observer *stream.Observer, raw json.RawMessage) {
	conn := observer.Conn()

	var cmd stream.SessionCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		_ = conn.WriteJSON(stream.NewErrorMessage("INVALID_MESSAGE", "malformed command frame", true))
		return
	}

	if cmd.Action == stream.ActionSync {
		sinceMS := 0.0
		if cmd.LastTimestampMS != nil {
			sinceMS = *cmd.LastTimestampMS
		}
		for _, msg := range mgr.GetSyncMessages(machineID, sinceMS) {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		return
	}

	result := mgr.HandleSessionCommand(machineID, cmd.Action, cmd.EventType)

	if state, ok := result.(stream.StateMessage); ok {
		if mi, ok := mgr.GetInstance(machineID); ok {
			data, err := json.Marshal(state)
			if err == nil {
				mi.Hub().BroadcastExcept(data, observer.ID())
			}
			if store != nil {
				if err := store.RecordEvent(ctx, machineID, state.State, 0); err != nil {
					logger.Warn("record session event failed", zap.Error(err), zap.String("machine_id", machineID))
				}
			}
		}
	}

	_ = conn.WriteJSON(result)
}
