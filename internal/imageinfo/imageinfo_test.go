package imageinfo

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	body := pngBytes(t, 64, 48)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		case "/img.webp":
			w.Header().Set("Content-Type", "image/webp")
			_, _ = w.Write([]byte("RIFF....WEBP"))
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	tests := []struct {
		name    string
		path    string
		want    Info
		wantErr bool
	}{
		{name: "png header", path: "/img.png", want: Info{Width: 64, Height: 48, Format: "png"}},
		{name: "content type fallback", path: "/img.webp", want: Info{Format: "webp"}},
		{name: "unknown format", path: "/text", wantErr: true},
		{name: "not found", path: "/missing", wantErr: true},
	}

	p := NewInspector(srv.Client())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Inspect(context.Background(), srv.URL+tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInspectUndecodableIsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("garbage"))
	}))
	t.Cleanup(srv.Close)

	_, err := NewInspector(srv.Client()).Inspect(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrUndecodable)
}
