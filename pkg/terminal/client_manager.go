package terminal

import (
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/minipl/pkg/logger"
)

const (
	// MaxClientsDefault caps concurrent terminal connections.
	MaxClientsDefault = 100
	// maxConnectsPerMinute caps new connections from one address.
	maxConnectsPerMinute = 30
)

type rateLimitInfo struct {
	requests  int
	lastReset time.Time
}

// ClientManager tracks connected clients by session ID.
type ClientManager struct {
	clients    map[string]*Client
	rateLimits map[string]*rateLimitInfo
	maxClients int
	mu         sync.RWMutex
}

// NewClientManager creates a manager accepting up to maxClients clients.
func NewClientManager(maxClients int) *ClientManager {
	if maxClients <= 0 {
		maxClients = MaxClientsDefault
	}
	return &ClientManager{
		clients:    make(map[string]*Client),
		rateLimits: make(map[string]*rateLimitInfo),
		maxClients: maxClients,
	}
}

// AddClient registers client. It fails when the manager is full.
func (cm *ClientManager) AddClient(sessionID string, client *Client) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if len(cm.clients) >= cm.maxClients {
		return fmt.Errorf("maximum of %d clients reached", cm.maxClients)
	}
	cm.clients[sessionID] = client
	logger.Debug(logger.AreaTerminal, "client added for session %s", sessionID)
	return nil
}

// RemoveClient forgets the client of sessionID.
func (cm *ClientManager) RemoveClient(sessionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.clients[sessionID]; exists {
		delete(cm.clients, sessionID)
		logger.Debug(logger.AreaTerminal, "client removed for session %s", sessionID)
	}
}

// GetClientCount returns the number of connected clients.
func (cm *ClientManager) GetClientCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// HasClient reports whether sessionID is connected.
func (cm *ClientManager) HasClient(sessionID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, exists := cm.clients[sessionID]
	return exists
}

// CheckRateLimit counts a connection attempt from ipAddress.
func (cm *ClientManager) CheckRateLimit(ipAddress string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := time.Now()
	info, exists := cm.rateLimits[ipAddress]
	if !exists {
		info = &rateLimitInfo{lastReset: now}
		cm.rateLimits[ipAddress] = info
	}

	if now.Sub(info.lastReset) > time.Minute {
		info.requests = 0
		info.lastReset = now
	}
	info.requests++
	if info.requests > maxConnectsPerMinute {
		logger.SecurityWarn("rate limit exceeded for %s: %d connections in last minute", ipAddress, info.requests)
		return fmt.Errorf("rate limit exceeded: too many connections from %s", ipAddress)
	}
	return nil
}

// CloseAll stops every client, used on shutdown.
func (cm *ClientManager) CloseAll() {
	cm.mu.RLock()
	clients := make([]*Client, 0, len(cm.clients))
	for _, c := range cm.clients {
		clients = append(clients, c)
	}
	cm.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
