// Package objectstore keeps review images on local disk as webp files that
// the API serves under /media/.
package objectstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"review_studio/internal/adapters/observability"
)

const maxImageBytes = 20 << 20

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

type Store struct {
	dir       string
	publicURL string
	hc        *http.Client
	quality   float32
}

func New(dir, publicURL string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{
		dir:       dir,
		publicURL: strings.TrimRight(publicURL, "/"),
		hc:        &http.Client{Timeout: 60 * time.Second},
		quality:   85,
	}, nil
}

// Dir is the directory files are written to.
func (s *Store) Dir() string { return s.dir }

// Upload fetches sourceURL (http(s) or data: URL), transcodes it to webp and
// stores it as <filename>.webp. It returns the public URL of the stored file.
func (s *Store) Upload(ctx context.Context, sourceURL, filename string) (string, error) {
	name := strings.Trim(unsafeName.ReplaceAllString(filename, "-"), "-")
	if name == "" {
		return "", errors.New("empty filename")
	}

	var (
		raw []byte
		err error
	)
	if strings.HasPrefix(sourceURL, "data:") {
		raw, err = decodeDataURL(sourceURL)
	} else {
		raw, err = s.download(ctx, sourceURL)
	}
	if err != nil {
		return "", err
	}

	out, err := s.toWEBP(raw)
	if err != nil {
		return "", fmt.Errorf("transcode %s: %w", name, err)
	}

	final := filepath.Join(s.dir, name+".webp")
	tmp, err := os.CreateTemp(s.dir, name+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store image: %w", err)
	}
	return s.publicURL + "/" + name + ".webp", nil
}

func (s *Store) download(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "review-studio/1.0")
	start := time.Now()
	resp, err := s.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("media", "download", 0, time.Since(start))
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("media", "download", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("download image: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, fmt.Errorf("download image: unexpected content type %q", ct)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, errors.New("download image: file too large")
	}
	return data, nil
}

func decodeDataURL(dataURL string) ([]byte, error) {
	const marker = ";base64,"
	idx := strings.Index(dataURL, marker)
	if idx < 0 {
		return nil, errors.New("data URL missing base64 marker")
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+len(marker):])
	if err != nil {
		return nil, fmt.Errorf("decode image base64: %w", err)
	}
	return raw, nil
}

func (s *Store) toWEBP(data []byte) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, s.quality)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := webp.Encode(&out, img, opts); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func decodeImage(data []byte) (image.Image, error) {
	if isWEBP(data) {
		return webp.Decode(bytes.NewReader(data), &decoder.Options{})
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func isWEBP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
