package core

import (
	"sync"
	"time"

	"github.com/automoto/blockshot/logger"
	"github.com/automoto/blockshot/shared/messages"
	"github.com/google/uuid"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/sirupsen/logrus"
)

// sweepInterval is how often ended rooms are checked for expiry.
const sweepInterval = 30 * time.Second

// Server is the signaling/relay server. It owns no game state: clients are
// seated into rooms by the Hub and exchange opaque payloads through it.
type Server struct {
	hub       *Hub
	registry  *Registry
	transport *transports.WsServerTransport

	// peer id assigned to each connection
	clients map[*router.NetworkClient]string
	mu      sync.RWMutex

	log *logrus.Entry
}

// NewServer creates a server accepting clients of the given protocol
// version. Ended rooms stay listed for ttl.
func NewServer(version string, ttl time.Duration) *Server {
	registry := NewRegistry(ttl)
	s := &Server{
		hub:      NewHub(version, registry),
		registry: registry,
		clients:  make(map[*router.NetworkClient]string),
		log:      logger.Component("server"),
	}

	s.setupRouterCallbacks()
	return s
}

// Start listens for websocket clients on port. It blocks until the transport
// stops.
func (s *Server) Start(port uint) error {
	go s.registry.Run(sweepInterval)

	s.transport = transports.NewWsServerTransport(port, "", nil)
	return s.transport.Start()
}

// Stop halts the registry sweep.
func (s *Server) Stop() {
	s.registry.Stop()
}

func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) setupRouterCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		s.onConnect(client)
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		s.onDisconnect(client, err)
	})

	router.On(func(client *router.NetworkClient, msg messages.JoinRoom) {
		if id, ok := s.peerID(client); ok {
			s.hub.Join(id, necsConn{client}, msg)
		}
	})

	router.On(func(client *router.NetworkClient, msg messages.Relay) {
		if id, ok := s.peerID(client); ok {
			s.hub.Relay(id, msg)
		}
	})

	router.OnError(func(client *router.NetworkClient, err error) {
		s.log.WithError(err).Warn("client error")
	})
}

func (s *Server) onConnect(client *router.NetworkClient) {
	id := uuid.NewString()

	s.mu.Lock()
	s.clients[client] = id
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"peer": id,
		"conn": client.Id(),
	}).Info("client connected")
}

func (s *Server) onDisconnect(client *router.NetworkClient, err error) {
	s.mu.Lock()
	id, ok := s.clients[client]
	delete(s.clients, client)
	s.mu.Unlock()

	if !ok {
		return
	}
	entry := s.log.WithField("peer", id)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Info("client disconnected")

	s.hub.Leave(id)
}

func (s *Server) peerID(client *router.NetworkClient) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.clients[client]
	return id, ok
}

// PlayerCount returns the number of seated clients.
func (s *Server) PlayerCount() int {
	return s.hub.Peers()
}

type necsConn struct {
	client *router.NetworkClient
}

func (c necsConn) Send(msg any) error {
	return c.client.SendMessage(msg)
}
