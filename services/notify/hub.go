// Package notify pushes achievement toasts to connected websocket clients.
package notify

import (
	"log"
	"sync"

	"deckhub/services/achievements"
)

const (
	TypeAchievementUnlocked = "achievement_unlocked"
	TypeRankUp              = "rank_up"

	sendBufferSize = 32
)

// Conn is the subset of a websocket connection the hub uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

type Message struct {
	Type        string                            `json:"type"`
	Achievement *achievements.UnlockedAchievement `json:"achievement,omitempty"`
	XP          int                               `json:"xp,omitempty"`
	Rank        *achievements.Rank                `json:"rank,omitempty"`
}

type client struct {
	userID string
	conn   Conn
	send   chan Message
}

// Hub tracks open connections per user. A user may have several tabs open.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{})}
}

// Serve registers conn for userID and blocks until the client disconnects.
// Incoming frames are read and discarded.
func (h *Hub) Serve(userID string, conn Conn) {
	c := &client{userID: userID, conn: conn, send: make(chan Message, sendBufferSize)}
	h.register(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(c)
	<-done
	_ = conn.Close()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	log.Printf("🔌 websocket connected for user %s (%d open)", c.userID, len(set))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[c.userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

func (c *client) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("Write error for user %s: %v", c.userID, err)
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// Connections reports how many sockets userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish queues msg for every connection of userID and returns how many
// accepted it. Full buffers drop the message.
func (h *Hub) Publish(userID string, msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
			delivered++
		default:
			log.Printf("⚠️ Send buffer full for user %s, dropping message type: %s", userID, msg.Type)
		}
	}
	return delivered
}

// NotifyAward sends one toast per newly unlocked achievement, then a rank-up
// message if the award crossed a rank threshold.
func (h *Hub) NotifyAward(res *achievements.AwardResult) {
	if res == nil || res.DryRun {
		return
	}
	for i := range res.Unlocked {
		u := res.Unlocked[i]
		h.Publish(res.UserID, Message{Type: TypeAchievementUnlocked, Achievement: &u, XP: u.XP})
	}
	if res.RankUp {
		rank := res.Rank
		h.Publish(res.UserID, Message{Type: TypeRankUp, Rank: &rank})
	}
}
