package e2e

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/api"
)

// =============================================================================
// HTTP Helpers
// =============================================================================

// HTTPGet performs a GET request against the test server.
func HTTPGet(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := testClient.Get(url)
	require.NoError(t, err)
	return resp
}

// PostDetect uploads a single image to /api/v1/detect.
func PostDetect(t *testing.T, name string, data []byte) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, "file", []upload{{name, data}})
	resp, err := testClient.Post(baseURL+"/api/v1/detect", contentType, body)
	require.NoError(t, err)
	return resp
}

// PostBatchDetect uploads multiple images to /api/v1/batch-detect.
func PostBatchDetect(t *testing.T, uploads []upload) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, "files", uploads)
	resp, err := testClient.Post(baseURL+"/api/v1/batch-detect", contentType, body)
	require.NoError(t, err)
	return resp
}

// DetectImage uploads an image and returns the decoded response.
func DetectImage(t *testing.T, name string, data []byte) api.DetectResponse {
	t.Helper()
	resp := PostDetect(t, name, data)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeJSON[api.DetectResponse](t, resp)
}

type upload struct {
	name string
	data []byte
}

func multipartBody(t *testing.T, field string, uploads []upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, u := range uploads {
		part, err := w.CreateFormFile(field, u.name)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// =============================================================================
// Image Fixtures
// =============================================================================

// cleanImagePNG encodes a uniform white image with no edges.
func cleanImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.White)
		}
	}
	return encodePNG(t, img)
}

// defectImagePNG encodes a white image with one dark blob in the middle.
func defectImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.White)
		}
	}
	for y := 45; y <= 75; y++ {
		for x := 45; x <= 75; x++ {
			dx, dy := x-60, y-60
			if dx*dx+dy*dy <= 15*15 {
				img.Set(x, y, color.Black)
			}
		}
	}
	return encodePNG(t, img)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
