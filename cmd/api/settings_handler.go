package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"todo-assist-backend/pkg/ai"

	"github.com/gin-gonic/gin"
)

// RuntimeSettings is the Ollama endpoint the suggestion generator reads on
// every call. Updates through the settings API take effect on the next
// generation without a restart.
type RuntimeSettings struct {
	mu        sync.RWMutex
	baseURL   string
	model     string
	generator string
}

func NewRuntimeSettings(baseURL, model string) *RuntimeSettings {
	return &RuntimeSettings{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:   strings.TrimSpace(model),
	}
}

func (s *RuntimeSettings) OllamaBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

func (s *RuntimeSettings) OllamaModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetGenerator records the name of the active generator chain for display.
func (s *RuntimeSettings) SetGenerator(name string) {
	s.mu.Lock()
	s.generator = name
	s.mu.Unlock()
}

func (s *RuntimeSettings) snapshot() gin.H {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gin.H{
		"ollama_base_url": s.baseURL,
		"ollama_model":    s.model,
		"generator":       s.generator,
	}
}

func (s *RuntimeSettings) update(baseURL, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = baseURL
	if model != "" {
		s.model = model
	}
}

var errBadOllamaURL = errors.New("ollama_base_url must be an absolute http(s) URL")

func normalizeOllamaURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errBadOllamaURL
	}
	return trimmed, nil
}

type SettingsHandler struct {
	settings *RuntimeSettings
}

func NewSettingsHandler(settings *RuntimeSettings) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

type updateOllamaRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GET /api/settings/ollama
func (h *SettingsHandler) GetOllama(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.snapshot())
}

// PUT /api/settings/ollama
func (h *SettingsHandler) UpdateOllama(c *gin.Context) {
	var req updateOllamaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	baseURL, err := normalizeOllamaURL(req.OllamaBaseURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.settings.update(baseURL, strings.TrimSpace(req.OllamaModel))
	c.JSON(http.StatusOK, h.settings.snapshot())
}

// TestOllama checks the given base URL, or the current one when the body is empty.
// POST /api/settings/ollama/test
func (h *SettingsHandler) TestOllama(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	_ = c.ShouldBindJSON(&req)

	target := h.settings.OllamaBaseURL()
	if strings.TrimSpace(req.OllamaBaseURL) != "" {
		normalized, err := normalizeOllamaURL(req.OllamaBaseURL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		target = normalized
	}

	status, err := ai.Ping(c.Request.Context(), target)
	switch {
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"connected": false, "error": err.Error()})
	case status != http.StatusOK:
		c.JSON(http.StatusServiceUnavailable, gin.H{"connected": false, "status_code": status})
	default:
		c.JSON(http.StatusOK, gin.H{"connected": true, "ollama_base_url": target})
	}
}
