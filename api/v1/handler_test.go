// Package v1_test contains tests for the API v1 handlers
package v1_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/internal/fingerprint"
	"sigil/internal/render"
	"sigil/internal/testsupport"
)

func TestGetAvatarAction(t *testing.T) {
	t.Run("serves the rendered svg with cache headers", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		app, _ := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

		resp, err := app.Test(httptest.NewRequest("GET", "/avatars/alice", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
		assert.Equal(t, "public, max-age=86400, immutable", resp.Header.Get("Cache-Control"))
		assert.NotEmpty(t, resp.Header.Get("ETag"))
		assert.Len(t, resp.Header.Get("X-Request-Id"), 36)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		want, err := render.SVG(fingerprint.Compose("alice"), render.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, string(want), string(body))
	})

	t.Run("returns 304 when the etag matches", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		app, _ := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

		resp, err := app.Test(httptest.NewRequest("GET", "/avatars/alice", nil))
		require.NoError(t, err)
		etag := resp.Header.Get("ETag")

		req := httptest.NewRequest("GET", "/avatars/alice", nil)
		req.Header.Set("If-None-Match", etag)
		resp, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotModified, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		assert.Empty(t, body)
	})

	t.Run("unescapes the identity", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		app, _ := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

		resp, err := app.Test(httptest.NewRequest("GET", "/avatars/Alice%20Smith", nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)

		want, err := render.SVG(fingerprint.Compose("Alice Smith"), render.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, string(want), string(body))
	})

	t.Run("renders the empty identity when none is given", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		app, _ := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

		resp, err := app.Test(httptest.NewRequest("GET", "/avatars", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), `<circle cx="63" cy="79" r="24"`)
	})

	t.Run("honours the size query", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		app, _ := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

		resp, err := app.Test(httptest.NewRequest("GET", "/avatars/alice?size=128", nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), `width="128" height="128"`)
	})

	for _, size := range []string{"0", "-5", "abc", "100000"} {
		size := size
		t.Run(fmt.Sprintf("rejects size %s", size), func(t *testing.T) {
			dbManager, _ := testsupport.SetupTestDBManager(t)
			app, _ := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

			resp, err := app.Test(httptest.NewRequest("GET", "/avatars/alice?size="+size, nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	t.Run("records served avatars", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		app, svc := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

		_, err := app.Test(httptest.NewRequest("GET", "/avatars/erin", nil))
		require.NoError(t, err)
		assert.Equal(t, 1, svc.Tracker().Pending())
	})

	t.Run("HEAD requests are not recorded", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		app, svc := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

		resp, err := app.Test(httptest.NewRequest("HEAD", "/avatars/frank", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
		assert.NotEmpty(t, resp.Header.Get("ETag"))
		assert.Zero(t, svc.Tracker().Pending())

		_, err = app.Test(httptest.NewRequest("GET", "/avatars/frank", nil))
		require.NoError(t, err)
		assert.Equal(t, 1, svc.Tracker().Pending())
	})
}

func TestGetFingerprintAction(t *testing.T) {
	t.Run("returns the descriptor as json", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		app, _ := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/fingerprints/alice", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Identity    string `json:"identity"`
			Alias       string `json:"alias"`
			Palette     []fingerprint.Color
			Fingerprint struct {
				Seed       int64            `json:"seed"`
				HashScheme string           `json:"hash_scheme"`
				Canvas     int              `json:"canvas"`
				Primitives []map[string]any `json:"primitives"`
			} `json:"fingerprint"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

		assert.Equal(t, "alice", body.Identity)
		assert.Equal(t, "Amber Magpie", body.Alias)
		assert.Len(t, body.Palette, 7)
		assert.Equal(t, int64(92903040), body.Fingerprint.Seed)
		assert.Equal(t, "int32", body.Fingerprint.HashScheme)
		assert.Equal(t, 100, body.Fingerprint.Canvas)
		require.Len(t, body.Fingerprint.Primitives, 5)

		kinds := make([]string, 0, 5)
		for _, p := range body.Fingerprint.Primitives {
			kinds = append(kinds, p["kind"].(string))
		}
		assert.Equal(t, []string{"background", "circle", "rotated_rect", "triangle", "noise_overlay"}, kinds)
	})
}

func TestGetSeedAction(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	app, _ := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/seeds/alice", nil))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "alice", body["identity"])
	assert.Equal(t, float64(92903040), body["seed"])
	assert.Equal(t, "int32", body["hash_scheme"])
	assert.Equal(t, "Amber Magpie", body["alias"])
}

func TestPostFingerprintBatchAction(t *testing.T) {
	post := func(t *testing.T, payload string) *http.Response {
		t.Helper()
		dbManager, _ := testsupport.SetupTestDBManager(t)
		app, _ := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

		req := httptest.NewRequest("POST", "/api/v1/fingerprints/batch", bytes.NewReader([]byte(payload)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("returns descriptors in request order", func(t *testing.T) {
		resp := post(t, `{"identities":["bob","alice",""]}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Fingerprints []struct {
				Seed int64 `json:"seed"`
			} `json:"fingerprints"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Fingerprints, 3)
		assert.Equal(t, fingerprint.DeriveSeed("bob"), body.Fingerprints[0].Seed)
		assert.Equal(t, int64(92903040), body.Fingerprints[1].Seed)
		assert.Equal(t, int64(0), body.Fingerprints[2].Seed)
	})

	t.Run("rejects batches over the limit", func(t *testing.T) {
		ids := make([]string, 101)
		for i := range ids {
			ids[i] = fmt.Sprintf("%q", fmt.Sprintf("user-%d", i))
		}
		resp := post(t, `{"identities":[`+strings.Join(ids, ",")+`]}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects a missing identity list", func(t *testing.T) {
		resp := post(t, `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		resp := post(t, `{"identities":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
