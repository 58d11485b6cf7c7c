package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/raido/featureflag"
	"github.com/aukilabs/raido/models"
	"github.com/aukilabs/raido/spatial"
	"github.com/aukilabs/raido/streaming"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	// The header a client uses to identify itself.
	HeaderClientID = "X-Raido-Client-Id"
)

// StreamHandler streams the world grid around the viewpoint of a single
// client. Every method is called from the connection loop, which makes it the
// only owner of the streaming manager.
type StreamHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The duration of a frame.
	ClientFrameDuration time.Duration

	// The store that contains all the live sessions.
	Sessions *models.SessionStore

	// The budgets and limits of the streaming manager.
	StreamingConfig streaming.Config

	FeatureFlags featureflag.FeatureFlag

	conn     *websocket.Conn
	clientID string
	session  *models.Session
	manager  *streaming.Manager

	frame        uint32
	viewpoint    spatial.Vector3f
	hasViewpoint bool
}

func (h *StreamHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	if req := conn.Request(); req != nil {
		h.clientID = req.Header.Get(HeaderClientID)
	}
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	cfg := h.StreamingConfig
	h.FeatureFlags.IfSet(featureflag.FlagDisableDistanceCache, func() {
		cfg.DisableDistanceCache = true
	})
	h.FeatureFlags.IfSet(featureflag.FlagDisableCacheCleanup, func() {
		cfg.DisableCacheCleanup = true
	})

	h.manager = streaming.NewManager(cfg)
	h.session = h.Sessions.New(h.clientID)
	h.publishSnapshot()
}

func (h *StreamHandler) HandleDisconnect(_ error) {
	if h.manager != nil {
		h.manager.Close()
	}
	if h.session != nil {
		h.Sessions.Remove(h.session)
	}
}

func (h *StreamHandler) HandleViewpoint(ctx context.Context, msg Msg) error {
	var req ViewpointMsg
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if !req.Position.IsFinite() {
		return invalidRequest(msg, "viewpoint position is not finite")
	}

	h.viewpoint = req.Position
	h.hasViewpoint = true
	return nil
}

func (h *StreamHandler) HandleChunkLoaded(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req ChunkLoadedMsg
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	rejected, err := h.manager.FinalizeChunk(req.Coord, req.Entities)
	if errors.IsType(err, streaming.ErrTypeChunkNotTracked) ||
		errors.IsType(err, streaming.ErrTypeChunkAlreadyLoaded) {
		return errors.New("chunk cannot be loaded").
			WithType(ErrTypeInvalidRequest).
			WithTag("coord", req.Coord.String()).
			Wrap(err)
	}
	if err != nil {
		return err
	}

	if rejected != 0 {
		logs.WithTag(logs.ClientIDTag, h.clientID).
			WithTag("coord", req.Coord.String()).
			WithTag("rejected", rejected).
			Debug("chunk entities outside of the chunk were skipped")
	}
	return nil
}

func (h *StreamHandler) HandleQuery(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req QueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if !req.Center.IsFinite() || !(req.Radius >= 0) {
		return invalidRequest(msg, "query center or radius is invalid")
	}
	if !req.Level.Valid() {
		return invalidRequest(msg, "query level is invalid")
	}

	ids := h.manager.QueryEntities(req.Center, req.Radius, req.Level)
	if ids == nil {
		ids = []uint32{}
	}

	respond.Send(MsgTypeQueryResponse, QueryResponse{
		RequestID: req.RequestID,
		EntityIDs: ids,
	})
	return nil
}

func (h *StreamHandler) HandleDistance(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req DistanceRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	// Distances are measured from the viewpoint of the last frame.
	if _, ok := h.manager.Viewpoint(); !ok {
		return invalidRequest(msg, "no viewpoint has been streamed yet")
	}

	distances := make([]EntityDistance, 0, len(req.Entities))
	for _, e := range req.Entities {
		if !e.Position.IsFinite() {
			return invalidRequest(msg, "entity position is not finite")
		}

		distances = append(distances, EntityDistance{
			ID:       e.ID,
			Distance: h.manager.Distance(e.ID, e.Position),
		})
	}

	respond.Send(MsgTypeDistanceResponse, DistanceResponse{
		RequestID: req.RequestID,
		Distances: distances,
	})
	return nil
}

func (h *StreamHandler) HandleStats(ctx context.Context, respond ResponseSender, msg Msg) error {
	req, err := requestFrom(msg)
	if err != nil {
		return err
	}

	respond.Send(MsgTypeStatsResponse, StatsResponse{
		RequestID: req.RequestID,
		Frame:     h.frame,
		Cache:     h.manager.CacheStats(),
		Usage:     h.manager.Usage(),
		Index:     h.manager.IndexDebugInfo(),
	})
	return nil
}

func (h *StreamHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	req, err := requestFrom(msg)
	if err != nil {
		return err
	}

	respond.Send(MsgTypePong, PongResponse{
		RequestID: req.RequestID,
		Timestamp: time.Now(),
	})
	return nil
}

func (h *StreamHandler) HandleFrame(ctx context.Context, respond ResponseSender) error {
	if !h.hasViewpoint {
		return nil
	}

	h.frame++
	update := h.manager.Tick(h.viewpoint, h.frame)

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableStreamUpdates, func() {
		var jobs []streaming.GenerationJob
		for i := 0; i < h.StreamingConfig.GenerationBudget; i++ {
			job, ok := h.manager.NextToGenerate()
			if !ok {
				break
			}
			jobs = append(jobs, job)
		}

		if update.IsEmpty() && len(jobs) == 0 {
			return
		}
		respond.Send(MsgTypeStreamUpdate, newStreamUpdate(update, jobs))
	})

	h.publishSnapshot()
	return nil
}

func (h *StreamHandler) publishSnapshot() {
	h.session.SetSnapshot(models.Snapshot{
		Frame:        h.frame,
		Viewpoint:    h.viewpoint,
		HasViewpoint: h.hasViewpoint,
		CacheStats:   h.manager.CacheStats(),
		Usage:        h.manager.Usage(),
		UpdatedAt:    time.Now(),
	})
}

func (h *StreamHandler) Receiver() Receiver {
	return NewReceiver(h.conn)
}

func (h *StreamHandler) Sender() Sender {
	return NewSender(h.conn)
}

func (h *StreamHandler) Close() {
}

func (h *StreamHandler) FrameDuration() time.Duration {
	return h.ClientFrameDuration
}

func (h *StreamHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *StreamHandler) CurrentSession() *models.Session {
	return h.session
}

func (h *StreamHandler) GetClientID() string {
	return h.clientID
}

func newStreamUpdate(update streaming.Update, jobs []streaming.GenerationJob) StreamUpdate {
	msg := StreamUpdate{
		Frame:    update.Frame,
		Load:     update.Loaded,
		Unload:   make([]UnloadedChunk, 0, len(update.Unloaded)),
		Generate: jobs,
	}

	if msg.Load == nil {
		msg.Load = []spatial.WorldCoord{}
	}
	if msg.Generate == nil {
		msg.Generate = []streaming.GenerationJob{}
	}

	for _, u := range update.Unloaded {
		ids := u.Entities
		if ids == nil {
			ids = []uint32{}
		}

		msg.Unload = append(msg.Unload, UnloadedChunk{
			Coord:     u.Coord,
			EntityIDs: ids,
		})
	}
	return msg
}

func requestFrom(msg Msg) (Request, error) {
	var req Request
	if len(msg.Data) == 0 {
		return req, nil
	}

	err := msg.DataTo(&req)
	return req, err
}
