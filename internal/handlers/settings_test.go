package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mediacache/internal/upstream"
	"github.com/charlesng35/mediacache/pkg/response"
)

func newSettingsRouter(t *testing.T, store *stubSettings) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler, err := NewSettingsHandler(store)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/api/settings", handler.Get)
	r.PATCH("/api/settings", handler.Update)
	return r
}

func TestSettingsHandlerGetMasksClearance(t *testing.T) {
	store := &stubSettings{settings: upstream.Settings{ImageMaxSizeMB: 64, CFClearance: "cf_clearance=secret"}}
	r := newSettingsRouter(t, store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "secret")

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	data := payload.Data.(map[string]any)
	require.Equal(t, true, data["cf_clearance_set"])
	require.EqualValues(t, 64, data["image_cache_max_size_mb"])
}

func TestSettingsHandlerUpdate(t *testing.T) {
	store := &stubSettings{}
	r := newSettingsRouter(t, store)

	body := `{"image_cache_max_size_mb": 256, "cf_clearance": "abc"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/settings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, store.patches, 1)
	require.Nil(t, store.patches[0].VideoMaxSizeMB)
	require.Equal(t, 256.0, *store.patches[0].ImageMaxSizeMB)
	require.Equal(t, "cf_clearance=abc", store.settings.CFClearance)
}

func TestSettingsHandlerUpdateRejectsInvalid(t *testing.T) {
	store := &stubSettings{}
	r := newSettingsRouter(t, store)

	for _, body := range []string{`{"video_cache_max_size_mb": -1}`, `not json`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/settings", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	require.Empty(t, store.patches)
}
