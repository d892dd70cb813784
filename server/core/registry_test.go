package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/automoto/blockshot/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestRegistry(ttl time.Duration) (*Registry, *clock) {
	logger.Silence()
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(ttl)
	r.now = c.now
	return r, c
}

func TestRegistryExpiresEndedRooms(t *testing.T) {
	r, c := newTestRegistry(time.Minute)
	r.Update("arena#1", RoomInfo{Name: "arena", Generation: 1, Players: 2, Next: 2, State: RoomPlaying})
	r.Update("lobby#1", RoomInfo{Name: "lobby", Generation: 1, Players: 1, Next: 2, State: RoomWaiting})
	r.End("arena#1")
	r.End("missing#1")

	c.t = c.t.Add(59 * time.Second)
	r.expire()
	require.Len(t, r.List(), 2)
	assert.Equal(t, RoomEnded, r.List()[0].State)
	assert.Equal(t, 0, r.List()[0].Players)

	c.t = c.t.Add(time.Second)
	r.expire()
	assert.Equal(t, []RoomInfo{{Name: "lobby", Generation: 1, Players: 1, Next: 2, State: RoomWaiting}}, r.List())

	// live rooms never expire
	c.t = c.t.Add(time.Hour)
	r.expire()
	assert.Len(t, r.List(), 1)
}

func TestRegistryListOrder(t *testing.T) {
	r, _ := newTestRegistry(time.Minute)
	r.Update("b#1", RoomInfo{Name: "b", Generation: 1})
	r.Update("a#2", RoomInfo{Name: "a", Generation: 2})
	r.Update("a#1", RoomInfo{Name: "a", Generation: 1})

	rooms := r.List()
	require.Len(t, rooms, 3)
	assert.Equal(t, "a", rooms[0].Name)
	assert.Equal(t, 1, rooms[0].Generation)
	assert.Equal(t, 2, rooms[1].Generation)
	assert.Equal(t, "b", rooms[2].Name)
}

func TestRegistryRunStops(t *testing.T) {
	r, _ := newTestRegistry(time.Minute)
	done := make(chan struct{})
	go func() {
		r.Run(time.Millisecond)
		close(done)
	}()
	r.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestListRoomsHandler(t *testing.T) {
	r, _ := newTestRegistry(time.Minute)
	r.Update("arena#1", RoomInfo{Name: "arena", Generation: 1, Players: 1, Next: 2, State: RoomWaiting})

	srv := httptest.NewServer(NewMux(r))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var rooms []RoomInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	assert.Equal(t, r.List(), rooms)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Health()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMuxRejectsWrongMethod(t *testing.T) {
	r, _ := newTestRegistry(time.Minute)
	rec := httptest.NewRecorder()
	NewMux(r).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rooms", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
