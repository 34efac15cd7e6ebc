// Package collab relays scene edits between websocket clients.
//
// One hub goroutine owns every room. Client read pumps hand it messages over
// channels; it merges them into the room's scene, acknowledges the sender and
// broadcasts the winning records to everyone else.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/persist"
	"github.com/inamate/sketchboard/internal/reconcile"
)

const (
	DefaultSaveInterval = 30 * time.Second

	storeTimeout = 10 * time.Second
)

// SceneStore loads and saves room snapshots. persist.Storer satisfies it.
type SceneStore interface {
	LoadScene(ctx context.Context, sceneID string) ([]element.Element, error)
	SaveScene(ctx context.Context, sceneID string, els []element.Element) (int64, error)
}

type inbound struct {
	client *Client
	msg    *Message
}

type Hub struct {
	store        SceneStore
	saveInterval time.Duration

	rooms map[string]*Room // sceneID -> room

	register   chan *Client
	unregister chan *Client
	messages   chan inbound
	queries    chan func()
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

func NewHub(store SceneStore, saveInterval time.Duration) *Hub {
	if saveInterval <= 0 {
		saveInterval = DefaultSaveInterval
	}
	return &Hub{
		store:        store,
		saveInterval: saveInterval,
		rooms:        make(map[string]*Room),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		messages:     make(chan inbound, 256),
		queries:      make(chan func()),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Run processes hub events until Stop is called. Dirty rooms are saved every
// save interval and once more on the way out.
func (h *Hub) Run() {
	defer close(h.done)

	ticker := time.NewTicker(h.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case in := <-h.messages:
			h.handleMessage(in.client, in.msg)
		case fn := <-h.queries:
			fn()
		case <-ticker.C:
			h.saveDirty()
		case <-h.stop:
			h.saveDirty()
			for _, room := range h.rooms {
				for _, c := range room.clients {
					close(c.send)
				}
			}
			h.rooms = make(map[string]*Room)
			return
		}
	}
}

// Stop saves every dirty room and waits for Run to return.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Submit hands a client message to the hub.
func (h *Hub) Submit(client *Client, msg *Message) {
	select {
	case h.messages <- inbound{client, msg}:
	case <-h.done:
	}
}

// ErrStopped is returned by calls made after Stop.
var ErrStopped = errors.New("hub stopped")

// Snapshot returns every record of a scene, tombstones included. A scene
// nobody is editing is read from the store.
func (h *Hub) Snapshot(sceneID string) ([]element.Element, error) {
	var els []element.Element
	var err error
	ok := h.query(func() {
		if room, loaded := h.rooms[sceneID]; loaded {
			els = room.Elements()
			return
		}
		var stored []element.Element
		if stored, err = h.load(sceneID); err == nil {
			els = NewRoom(sceneID, stored).Elements()
		}
	})
	if !ok {
		return nil, ErrStopped
	}
	return els, err
}

// Apply merges a batch into a scene on behalf of userID, the same way a
// websocket update is merged, and broadcasts the winners to connected
// clients. A scene nobody is editing is loaded, merged and saved at once.
func (h *Hub) Apply(sceneID, userID string, b reconcile.Batch) (reconcile.Result, error) {
	var res reconcile.Result
	var err error
	ok := h.query(func() {
		room, loaded := h.rooms[sceneID]
		if !loaded {
			var stored []element.Element
			if stored, err = h.load(sceneID); err != nil {
				return
			}
			room = NewRoom(sceneID, stored)
		}

		var broadcast *Message
		res, broadcast = room.applyUpdate(userID, b)
		switch {
		case !loaded:
			err = h.save(room)
		case broadcast != nil:
			h.broadcastToRoom(room, broadcast, "")
		}
	})
	if !ok {
		return reconcile.Result{}, ErrStopped
	}
	return res, err
}

func (h *Hub) query(fn func()) bool {
	wait := make(chan struct{})
	select {
	case h.queries <- func() { fn(); close(wait) }:
		<-wait
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) addClient(client *Client) {
	room, ok := h.rooms[client.SceneID]
	if !ok {
		stored, err := h.load(client.SceneID)
		if err != nil {
			slog.Error("load scene", "error", err, "scene", client.SceneID)
			client.Send(errorMessage("load_failed", "scene could not be loaded"))
			close(client.send)
			return
		}
		room = NewRoom(client.SceneID, stored)
		h.rooms[client.SceneID] = room
	}
	room.clients[client.ClientID] = client

	client.Send(newMessage(TypeWelcome, WelcomePayload{
		ClientID:    client.ClientID,
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
		SceneID:     client.SceneID,
	}))
	client.Send(room.SyncMessage())
	client.Send(room.presence.StateMessage())

	joinMsg := newMessage(TypePresenceJoin, PresenceJoinPayload{
		ClientID:    client.ClientID,
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	joinMsg.UserID = client.UserID
	h.broadcastToRoom(room, joinMsg, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "scene", client.SceneID)
}

func (h *Hub) load(sceneID string) ([]element.Element, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	els, err := h.store.LoadScene(ctx, sceneID)
	if errors.Is(err, persist.ErrNotFound) {
		return nil, nil
	}
	return els, err
}

func (h *Hub) removeClient(client *Client) {
	room, ok := h.rooms[client.SceneID]
	if !ok {
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		return
	}

	delete(room.clients, client.ClientID)
	close(client.send)
	room.presence.Remove(client.ClientID)

	if len(room.clients) == 0 {
		// An unsaved room stays loaded; saveDirty retries it and evicts it
		// once the store takes the edits.
		if err := h.save(room); err == nil {
			delete(h.rooms, client.SceneID)
		}
	} else {
		leaveMsg := newMessage(TypePresenceLeave, PresenceLeavePayload{
			ClientID: client.ClientID,
			UserID:   client.UserID,
		})
		leaveMsg.UserID = client.UserID
		h.broadcastToRoom(room, leaveMsg, "")
	}

	slog.Info("client left", "user", client.UserID, "scene", client.SceneID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	room, ok := h.rooms[sender.SceneID]
	if !ok || room.clients[sender.ClientID] != sender {
		return
	}

	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(room, sender, msg)
	case TypeSceneUpdate:
		h.handleSceneUpdate(room, sender, msg)
	case TypeSceneRequest:
		sender.Send(room.SyncMessage())
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sender.Send(errorMessage("unknown_type", "unknown message type "+msg.Type))
	}
}

func (h *Hub) handleSceneUpdate(room *Room, sender *Client, msg *Message) {
	if sender.ReadOnly {
		sender.Send(errorMessage("read_only", "this connection cannot edit the scene"))
		return
	}

	var batch SceneUpdatePayload
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		slog.Warn("invalid scene update payload", "error", err, "user", sender.UserID)
		sender.Send(errorMessage("invalid_payload", err.Error()))
		return
	}
	if batch.Kind == "" {
		batch.Kind = reconcile.KindDelta
	}

	ack, broadcast := room.ApplyUpdate(sender, msg.Seq, batch)
	sender.Send(ack)
	if broadcast != nil {
		h.broadcastToRoom(room, broadcast, sender.ClientID)
	}
}

func (h *Hub) handlePresenceUpdate(room *Room, sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.UserID = sender.UserID
	presence.DisplayName = sender.DisplayName
	room.presence.Update(sender.ClientID, &presence)

	outMsg := newMessage(TypePresenceUpdate, presence)
	outMsg.UserID = sender.UserID
	outMsg.ClientID = sender.ClientID
	h.broadcastToRoom(room, outMsg, sender.ClientID)
}

// broadcastToRoom sends msg to every client but excludeClientID. Clients
// whose buffer is full are disconnected; they resync on reconnect.
func (h *Hub) broadcastToRoom(room *Room, msg *Message, excludeClientID string) {
	var slow []*Client
	for _, c := range room.clients {
		if c.ClientID == excludeClientID {
			continue
		}
		if !c.Send(msg) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.removeClient(c)
	}
}

func (h *Hub) saveDirty() {
	for id, room := range h.rooms {
		if err := h.save(room); err == nil && len(room.clients) == 0 {
			delete(h.rooms, id)
		}
	}
}

func (h *Hub) save(room *Room) error {
	if !room.dirty {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	version, err := h.store.SaveScene(ctx, room.sceneID, room.Elements())
	if err != nil {
		slog.Error("save scene", "error", err, "scene", room.sceneID)
		return fmt.Errorf("save scene %s: %w", room.sceneID, err)
	}
	room.dirty = false
	slog.Debug("saved scene", "scene", room.sceneID, "version", version)
	return nil
}
