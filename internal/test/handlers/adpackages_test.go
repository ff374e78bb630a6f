package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banana-studio-backend/internal/adpackage"
	"banana-studio-backend/internal/handlers"
)

type fakeGenerator struct {
	pkg   *adpackage.Package
	err   error
	count int
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, brief adpackage.Brief, variantCount int) (*adpackage.Package, error) {
	f.calls++
	f.count = variantCount
	if f.err != nil {
		return nil, f.err
	}
	pkg := *f.pkg
	pkg.Brief = brief
	return &pkg, nil
}

var validBrief = adpackage.Brief{
	Brand:       "Banana Co",
	Product:     "Smoothie",
	ValueProp:   "Fresh every day",
	Audience:    "Commuters",
	Objective:   adpackage.ObjectiveAwareness,
	Platform:    adpackage.PlatformTikTok,
	DurationSec: 15,
}

func adPackagesRouter(gen *fakeGenerator) http.Handler {
	h := handlers.NewAdPackagesHandler(gen, nil)
	router := authedRouter(uuid.New())
	router.POST("/ad-packages", h.GenerateAdPackage)
	router.POST("/ad-packages/export/json", h.ExportJSON)
	router.POST("/ad-packages/export/srt", h.ExportSRT)
	router.GET("/ad-packages/platforms", h.ListPlatforms)
	return router
}

func TestGenerateAdPackage(t *testing.T) {
	gen := &fakeGenerator{pkg: &adpackage.Package{BaseScript: adpackage.Script{Hook: "Thirsty?"}}}
	router := adPackagesRouter(gen)

	w := doJSON(router, http.MethodPost, "/ad-packages", map[string]any{"brief": validBrief, "variant_count": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, gen.count)

	var pkg adpackage.Package
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pkg))
	assert.Equal(t, "Thirsty?", pkg.BaseScript.Hook)
	assert.Equal(t, "Banana Co", pkg.Brief.Brand)
}

func TestGenerateAdPackage_InvalidBriefSkipsModel(t *testing.T) {
	gen := &fakeGenerator{pkg: &adpackage.Package{}}
	router := adPackagesRouter(gen)

	brief := validBrief
	brief.DurationSec = 3
	w := doJSON(router, http.MethodPost, "/ad-packages", map[string]any{"brief": brief})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, gen.calls)
}

func TestGenerateAdPackage_ModelFailureIsBadGateway(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model returned an empty response")}
	router := adPackagesRouter(gen)

	w := doJSON(router, http.MethodPost, "/ad-packages", map[string]any{"brief": validBrief})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "empty response")
}

func TestExportJSON_Attachment(t *testing.T) {
	router := adPackagesRouter(&fakeGenerator{})

	w := doJSON(router, http.MethodPost, "/ad-packages/export/json", adpackage.Package{Brief: validBrief})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="Banana_Co_ad_package.json"`, w.Header().Get("Content-Disposition"))

	var pkg adpackage.Package
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pkg))
	assert.Equal(t, validBrief, pkg.Brief)
}

func TestExportSRT(t *testing.T) {
	router := adPackagesRouter(&fakeGenerator{})

	w := doJSON(router, http.MethodPost, "/ad-packages/export/srt", map[string]any{
		"script": adpackage.Script{Beats: []adpackage.Beat{
			{TStart: 0, TEnd: 1.5, Voiceover: "Thirsty?"},
			{TStart: 1.5, TEnd: 3},
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-subrip; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="script_captions.srt"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,500\nThirsty?\n\n", w.Body.String())
}

func TestListPlatforms(t *testing.T) {
	router := adPackagesRouter(&fakeGenerator{})

	w := doJSON(router, http.MethodGet, "/ad-packages/platforms", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Platforms []adpackage.PlatformConstraints `json:"platforms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Platforms, 3)
	assert.Equal(t, adpackage.PlatformTikTok, resp.Platforms[0].Platform)
	assert.Equal(t, 150, resp.Platforms[0].MaxCaptionLength)
}
