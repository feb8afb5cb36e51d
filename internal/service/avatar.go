package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/msomdec/accounts/internal/domain"
)

const (
	avatarHeight      = 500
	avatarJPEGQuality = 100
)

// AvatarProcessor normalizes a freshly saved avatar to a fixed height,
// keeping the aspect ratio, and stores it back under the same key.
type AvatarProcessor struct {
	files domain.FileStore
}

// NewAvatarProcessor creates a new AvatarProcessor.
func NewAvatarProcessor(files domain.FileStore) *AvatarProcessor {
	return &AvatarProcessor{files: files}
}

// AfterSave implements ProfileHook.
func (p *AvatarProcessor) AfterSave(ctx context.Context, profile *domain.Profile, change ProfileChange) error {
	if !change.AvatarChanged || profile.AvatarKey == "" {
		return nil
	}
	return p.Process(ctx, profile.AvatarKey)
}

// Process resizes the image stored at key and overwrites it as JPEG.
func (p *AvatarProcessor) Process(ctx context.Context, key string) error {
	data, err := p.files.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load avatar: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: decode avatar: %v", domain.ErrInvalidInput, err)
	}

	b := img.Bounds()
	width, height := AvatarSize(b.Dx(), b.Dy())
	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(avatarJPEGQuality)); err != nil {
		return fmt.Errorf("encode avatar: %w", err)
	}

	if err := p.files.Save(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("store avatar: %w", err)
	}
	return nil
}

// AvatarSize returns the target dimensions for a width x height source:
// height fixed at 500, width scaled to keep the aspect ratio and capped at
// maxAvatarAspect times the height.
func AvatarSize(width, height int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, avatarHeight
	}
	aspect := float64(height) / float64(width)
	w := int(avatarHeight / aspect)
	return min(max(w, 1), avatarHeight*maxAvatarAspect), avatarHeight
}
