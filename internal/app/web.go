package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/rigid_body_tracker/internal/config"
	"github.com/relabs-tech/rigid_body_tracker/internal/feed"
	"github.com/relabs-tech/rigid_body_tracker/internal/mapping"
	"github.com/relabs-tech/rigid_body_tracker/internal/monitor"
	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// StatusResponse is served on /api/status.
type StatusResponse struct {
	Status   string       `json:"status"`
	Error    string       `json:"error,omitempty"`
	FemurID  int          `json:"femur_id"`
	StylusID int          `json:"stylus_id"`
	Femur    *pose.Sample `json:"femur,omitempty"`
	Stylus   *pose.Sample `json:"stylus,omitempty"`
	Labels   []string     `json:"labels"`
}

// PairMessage is one L/M plane on the wire.
type PairMessage struct {
	Index int              `json:"index"`
	L     feed.PointResult `json:"l"`
	M     feed.PointResult `json:"m"`
}

// WSResponse is pushed on /ws/points.
type WSResponse struct {
	Type    string        `json:"type"` // pairs, error
	Status  string        `json:"status"`
	Pairs   []PairMessage `json:"pairs,omitempty"`
	Message string        `json:"message,omitempty"`
}

type webServer struct {
	sess *session.Session
	push time.Duration
	clk  clock.Clock
}

// NewWebHandler serves the live mapped point view for sess. Connected
// websocket clients get every L/M pair at the current femur pose each push
// interval.
func NewWebHandler(sess *session.Session, push time.Duration, clk clock.Clock) http.Handler {
	ws := &webServer{sess: sess, push: push, clk: clk}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", ws.handleStatus)
	mux.HandleFunc("GET /api/points", ws.handlePoints)
	mux.HandleFunc("GET /api/points/{label}", ws.handlePoint)
	mux.HandleFunc("GET /ws/points", ws.handlePointsWS)
	// Static files from ./web as the root
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, mapping.ErrUnknownLabel), errors.Is(err, session.ErrNoTable):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoTrackerData):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (ws *webServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := ws.sess.Snapshot()
	resp := StatusResponse{
		Status:   snap.Status.String(),
		FemurID:  ws.sess.TrackerID(),
		StylusID: ws.sess.StylusID(),
		Femur:    snap.Tracker,
		Stylus:   snap.Stylus,
		Labels:   []string{},
	}
	if err := ws.sess.Monitor().Err(); err != nil {
		resp.Error = err.Error()
	}
	if tbl := ws.sess.Table(); tbl != nil {
		resp.Labels = tbl.Labels()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (ws *webServer) handlePoints(w http.ResponseWriter, _ *http.Request) {
	pairs, err := ws.pairs()
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, pairs)
}

func (ws *webServer) handlePoint(w http.ResponseWriter, r *http.Request) {
	res, err := ws.sess.MappedPoint(r.PathValue("label"))
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, toFeedResult(res))
}

func (ws *webServer) pairs() ([]PairMessage, error) {
	pairs, err := ws.sess.MappedPairs()
	if err != nil {
		return nil, err
	}
	out := make([]PairMessage, len(pairs))
	for i, p := range pairs {
		out[i] = PairMessage{Index: p.Index, L: toFeedResult(p.L), M: toFeedResult(p.M)}
	}
	return out, nil
}

func (ws *webServer) handlePointsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// The client never sends; reading only notices when it goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := ws.clk.Ticker(ws.push)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			msg := WSResponse{Type: "pairs", Status: ws.sess.Status().String()}
			pairs, err := ws.pairs()
			if err != nil {
				msg.Type = "error"
				msg.Message = err.Error()
			} else {
				msg.Pairs = pairs
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

// RunWeb subscribes to the rigid body feed and serves the live view.
func RunWeb() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	clk := clock.New()

	tbl, err := mapping.LoadFile(cfg.MappedPointsCSV)
	if err != nil {
		return fmt.Errorf("mapped points: %w", err)
	}
	log.Printf("web: loaded %d mapped points (%d planes) from %s", tbl.Len(), len(tbl.Pairs()), cfg.MappedPointsCSV)

	mon := monitor.New(monitor.Options{
		Timeout:       cfg.Timeout(),
		CheckInterval: cfg.CheckInterval(),
		Clock:         clk,
		OnChange:      statusLogger("web"),
	})
	sess := session.New(session.Options{
		TrackerID: cfg.FemurID,
		StylusID:  cfg.StylusID,
		Table:     tbl,
		Monitor:   mon,
		Clock:     clk,
	})

	topic := feed.Wildcard(cfg.TopicRigidBody)
	handler := rigidBodyHandler("web", sess, cfg.PositionScale, clk)
	client := newClient(cfg.MQTTBroker, cfg.MQTTClientIDWeb,
		func(c mqtt.Client) {
			mon.Start()
			if err := subscribe(c, topic, handler); err != nil {
				log.Printf("web: %v", err)
				mon.Fail(err)
				return
			}
			log.Printf("web: subscribed to MQTT topic %s", topic)
		},
		mon.Fail,
	)
	if err := connect(client, cfg.MQTTBroker); err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, NewWebHandler(sess, cfg.PushInterval(), clk))
}
