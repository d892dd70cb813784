package core

import (
	"sort"
	"sync"
	"time"

	"github.com/automoto/blockshot/logger"
	"github.com/sirupsen/logrus"
)

type RoomState string

const (
	RoomWaiting RoomState = "waiting"
	RoomPlaying RoomState = "playing"
	RoomEnded   RoomState = "ended"
)

// RoomInfo describes one room generation as listed by GET /rooms.
type RoomInfo struct {
	Name       string    `json:"name"`
	Generation int       `json:"generation"`
	Players    int       `json:"players"`
	Next       int       `json:"next"`
	State      RoomState `json:"state"`
}

type roomRecord struct {
	RoomInfo
	LastSeen time.Time
}

// Registry is the in-memory listing of rooms. Live rooms stay listed while
// they have members; ended rooms are kept for ttl and then expire.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*roomRecord
	ttl    time.Duration
	now    func() time.Time
	stopCh chan struct{}

	log *logrus.Entry
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		rooms:  make(map[string]*roomRecord),
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
		log:    logger.Component("registry"),
	}
}

// Run expires ended rooms every interval until Stop is called.
func (r *Registry) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.expire()
		}
	}
}

func (r *Registry) Stop() {
	close(r.stopCh)
}

// Update records the current state of a live room.
func (r *Registry) Update(key string, info RoomInfo) {
	r.mu.Lock()
	r.rooms[key] = &roomRecord{RoomInfo: info, LastSeen: r.now()}
	r.mu.Unlock()
}

// End marks a room whose last member left.
func (r *Registry) End(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rooms[key]
	if !ok {
		return
	}
	rec.State = RoomEnded
	rec.Players = 0
	rec.LastSeen = r.now()
}

// List returns every known room ordered by name and generation.
func (r *Registry) List() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]RoomInfo, 0, len(r.rooms))
	for _, rec := range r.rooms {
		result = append(result, rec.RoomInfo)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Generation < result[j].Generation
	})
	return result
}

func (r *Registry) expire() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, rec := range r.rooms {
		if rec.State != RoomEnded || now.Sub(rec.LastSeen) < r.ttl {
			continue
		}
		r.log.WithFields(logrus.Fields{
			"room":  key,
			"ended": now.Sub(rec.LastSeen).Round(time.Second),
		}).Debug("expired room")
		delete(r.rooms, key)
	}
}
