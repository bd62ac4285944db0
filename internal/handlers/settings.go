package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mediacache/internal/upstream"
	appErrors "github.com/charlesng35/mediacache/pkg/errors"
	"github.com/charlesng35/mediacache/pkg/response"
)

// SettingsStore reads and updates the runtime settings bundle.
type SettingsStore interface {
	Settings(ctx context.Context) (upstream.Settings, error)
	Update(ctx context.Context, patch upstream.SettingsPatch) (upstream.Settings, error)
}

// SettingsHandler exposes capacity ceilings and origin request settings.
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(store SettingsStore) (*SettingsHandler, error) {
	if store == nil {
		return nil, errors.New("settings handler: store is required")
	}
	return &SettingsHandler{store: store}, nil
}

// settingsView hides the clearance cookie value.
type settingsView struct {
	ImageMaxSizeMB float64           `json:"image_cache_max_size_mb"`
	VideoMaxSizeMB float64           `json:"video_cache_max_size_mb"`
	CFClearanceSet bool              `json:"cf_clearance_set"`
	UserAgent      string            `json:"user_agent"`
	ExtraHeaders   map[string]string `json:"extra_headers,omitempty"`
}

func newSettingsView(s upstream.Settings) settingsView {
	return settingsView{
		ImageMaxSizeMB: s.ImageMaxSizeMB,
		VideoMaxSizeMB: s.VideoMaxSizeMB,
		CFClearanceSet: s.CFClearance != "",
		UserAgent:      s.UserAgent,
		ExtraHeaders:   s.ExtraHeaders,
	}
}

// Get returns the current settings.
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.store.Settings(requestContext(c))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to load settings"))
		return
	}
	response.Success(c, http.StatusOK, newSettingsView(settings))
}

// Update applies a partial settings change.
func (h *SettingsHandler) Update(c *gin.Context) {
	var patch upstream.SettingsPatch
	if !bindJSON(c, &patch) {
		return
	}

	settings, err := h.store.Update(mutationContext(c), patch)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to update settings"))
		return
	}
	response.Success(c, http.StatusOK, newSettingsView(settings))
}
