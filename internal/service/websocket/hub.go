package websocket

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"sync"

	"annotator/internal/config"
	"annotator/internal/dto"
	"annotator/internal/logger"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
)

const eventBuffer = 64

// HubService pushes render events to every connected viewer.
type HubService struct {
	clients        map[*websocket.Conn]bool
	broadcast      chan dto.RenderEvent
	register       chan *websocket.Conn
	unregister     chan *websocket.Conn
	quit           chan struct{}
	mutex          sync.RWMutex
	thumbnailWidth int
	logger         *logger.Logger
}

func NewHubService(config *config.Config, logger *logger.Logger) *HubService {
	return &HubService{
		clients:        make(map[*websocket.Conn]bool),
		broadcast:      make(chan dto.RenderEvent, eventBuffer),
		register:       make(chan *websocket.Conn),
		unregister:     make(chan *websocket.Conn),
		quit:           make(chan struct{}),
		thumbnailWidth: config.ThumbnailWidth,
		logger:         logger,
	}
}

func (h *HubService) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case event := <-h.broadcast:
			h.send(event)

		case <-h.quit:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop closes every viewer connection and ends Run.
func (h *HubService) Stop() {
	close(h.quit)
}

// Register adds a viewer. After Stop the connection is closed instead.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.quit:
		client.Close()
	}
}

// Publish queues an event for the viewers. Events are dropped when the
// queue is full so a transition never waits on slow viewers.
func (h *HubService) Publish(event dto.RenderEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warning("Render event queue full, dropping event for prediction %s", event.PredictionID)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *HubService) send(event dto.RenderEvent) {
	if h.GetClientCount() == 0 {
		return
	}

	if event.Thumbnail == "" {
		thumb, err := Thumbnail(event.RenderedImage, h.thumbnailWidth)
		if err != nil {
			h.logger.Warning("Failed to build thumbnail for %s: %v", event.RenderedImage, err)
		}
		event.Thumbnail = thumb
	}

	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode render event: %v", err)
		return
	}

	var failed []*websocket.Conn
	h.mutex.RLock()
	for client := range h.clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			failed = append(failed, client)
		}
	}
	h.mutex.RUnlock()

	if len(failed) > 0 {
		h.mutex.Lock()
		for _, client := range failed {
			delete(h.clients, client)
			client.Close()
		}
		h.mutex.Unlock()
	}
}

// Thumbnail returns a base64 JPEG of the image at path scaled to width.
// A non-positive width disables thumbnails.
func Thumbnail(path string, width int) (string, error) {
	if width <= 0 || path == "" {
		return "", nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return "", err
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
