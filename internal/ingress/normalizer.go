// Package ingress validates user turns and bounds photo payloads before they
// are handed to an inference provider. It performs no I/O.
package ingress

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"caloriebot/internal/domain"
	"caloriebot/internal/metrics"
)

var (
	// ErrTooSmall rejects photos below the minimum byte length.
	ErrTooSmall = errors.New("photo too small")
	// ErrEmptyText rejects blank descriptions before they reach a provider.
	ErrEmptyText = errors.New("empty text")
)

const (
	defaultMinPhotoBytes = 1000
	defaultMaxDimension  = 1024
	defaultJPEGQuality   = 85
	defaultMaxPixels     = 40_000_000
)

type Options struct {
	MinPhotoBytes int
	MaxDimension  int
	JPEGQuality   int
	// MaxPixels caps width*height of a photo before it is decoded. Larger
	// photos are forwarded undecoded.
	MaxPixels int
	Logger    *slog.Logger
}

// Normalizer turns an InboundInput into a NormalizedInput. It holds no
// mutable state and is safe for concurrent use.
type Normalizer struct {
	minPhotoBytes int
	maxDimension  int
	jpegQuality   int
	maxPixels     int
	logger        *slog.Logger
}

func New(opts Options) *Normalizer {
	// Zero means unset; a configured floor is always at least one byte.
	if opts.MinPhotoBytes <= 0 {
		opts.MinPhotoBytes = defaultMinPhotoBytes
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = defaultMaxDimension
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = defaultJPEGQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = defaultMaxPixels
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Normalizer{
		minPhotoBytes: opts.MinPhotoBytes,
		maxDimension:  opts.MaxDimension,
		jpegQuality:   opts.JPEGQuality,
		maxPixels:     opts.MaxPixels,
		logger:        opts.Logger,
	}
}

// Normalize validates in and, for photos, produces a bounded JPEG payload.
// Rejections are returned as errors wrapping ErrTooSmall or ErrEmptyText.
func (n *Normalizer) Normalize(in domain.InboundInput) (domain.NormalizedInput, error) {
	switch in.Kind {
	case domain.KindText:
		if strings.TrimSpace(in.Text) == "" {
			return domain.NormalizedInput{}, ErrEmptyText
		}
		return domain.NormalizedInput{Kind: domain.KindText, Text: in.Text}, nil
	case domain.KindPhoto:
		img, err := n.normalizePhoto(in.Photo)
		if err != nil {
			return domain.NormalizedInput{}, err
		}
		return domain.NormalizedInput{Kind: domain.KindPhoto, Image: img}, nil
	default:
		return domain.NormalizedInput{}, fmt.Errorf("unknown input kind %d", in.Kind)
	}
}

func (n *Normalizer) normalizePhoto(raw []byte) (*domain.NormalizedImage, error) {
	if len(raw) < n.minPhotoBytes {
		metrics.PhotosRejected.Inc()
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTooSmall, len(raw), n.minPhotoBytes)
	}

	out, size, err := reencode(raw, n.maxDimension, n.jpegQuality, n.maxPixels)
	if err != nil {
		// Forward the original bytes rather than failing the turn.
		mime := http.DetectContentType(raw)
		metrics.DecodeFallbacks.Inc()
		n.logger.Warn("image decode failed, forwarding raw bytes",
			"err", err,
			"bytes", len(raw),
			"detected_mime", mime,
		)
		return &domain.NormalizedImage{
			Base64:   base64.StdEncoding.EncodeToString(raw),
			MIMEType: mime,
			Fallback: true,
		}, nil
	}

	n.logger.Debug("image normalized",
		"in_bytes", len(raw),
		"out_bytes", len(out),
		"width", size.X,
		"height", size.Y,
	)
	return &domain.NormalizedImage{
		Base64:   base64.StdEncoding.EncodeToString(out),
		MIMEType: "image/jpeg",
		Width:    size.X,
		Height:   size.Y,
	}, nil
}
