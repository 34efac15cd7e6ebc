package collab

import (
	"log/slog"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/reconcile"
	"github.com/inamate/sketchboard/internal/scene"
)

// Room is the authoritative copy of one scene and the clients editing it.
// Everything here belongs to the hub goroutine.
type Room struct {
	sceneID   string
	scene     *scene.Scene
	recon     *reconcile.Reconciler
	clients   map[string]*Client // clientID -> client
	presence  *PresenceManager
	serverSeq int64
	dirty     bool
}

// NewRoom creates a room seeded with stored records. Records that fail
// validation are dropped and logged.
func NewRoom(sceneID string, stored []element.Element) *Room {
	s := scene.New()
	logger := slog.Default().With("scene", sceneID)
	r := &Room{
		sceneID:  sceneID,
		scene:    s,
		recon:    reconcile.New(s).WithLogger(logger),
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
	}
	if len(stored) > 0 {
		res := r.recon.ApplyElements(reconcile.KindSnapshot, stored)
		if err := res.Err(); err != nil {
			logger.Warn("dropped invalid stored elements", "error", err)
		}
	}
	return r
}

// ApplyUpdate merges a client's batch. The returned broadcast is nil when no
// record changed.
func (r *Room) ApplyUpdate(sender *Client, seq int64, b reconcile.Batch) (ack, broadcast *Message) {
	res, broadcast := r.applyUpdate(sender.UserID, b)

	ack = newMessage(TypeSceneAck, SceneAckPayload{Seq: seq, ServerSeq: r.serverSeq, Result: res})
	ack.SceneID = r.sceneID
	ack.Seq = seq
	return ack, broadcast
}

func (r *Room) applyUpdate(userID string, b reconcile.Batch) (reconcile.Result, *Message) {
	res := r.recon.Apply(b)

	changed := res.Changed()
	if len(changed) == 0 {
		return res, nil
	}
	r.serverSeq++
	r.dirty = true

	els := make([]element.Element, 0, len(changed))
	for _, id := range changed {
		if el, ok := r.scene.Get(id); ok {
			els = append(els, el)
		}
	}
	broadcast := newMessage(TypeSceneBroadcast, SceneBroadcastPayload{
		ServerSeq: r.serverSeq,
		UserID:    userID,
		Elements:  els,
	})
	broadcast.SceneID = r.sceneID
	broadcast.UserID = userID

	r.presence.Prune(func(id string) bool {
		_, ok := r.scene.Resolve(id)
		return ok
	})
	return res, broadcast
}

// SyncMessage returns the full scene for a joining or resyncing client.
func (r *Room) SyncMessage() *Message {
	msg := newMessage(TypeSceneSync, SceneSyncPayload{
		ServerSeq: r.serverSeq,
		Elements:  r.scene.Elements(),
	})
	msg.SceneID = r.sceneID
	return msg
}

// Elements returns every record, tombstones included, for saving.
func (r *Room) Elements() []element.Element {
	return r.scene.Elements()
}
