// Package media prepares project cover images: it bounds their width, re-encodes
// them as JPEG and stores them publicly so the URL can go on chain as imageUrl.
package media

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path"
	"time"

	"github.com/anthonynsimon/bild/transform"
	"github.com/google/uuid"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

const (
	DefaultMaxWidth = 1200
	DefaultQuality  = 85
	contentType     = "image/jpeg"
)

var ErrUnsupportedImage = errors.New("unsupported image")

// Store keeps an object publicly readable and returns its URL.
type Store interface {
	PutPublicObject(ctx context.Context, key, contentType string, file io.Reader) (string, error)
}

type Uploader struct {
	store    Store
	prefix   string
	maxWidth int
	quality  int
	now      func() time.Time
}

func NewUploader(store Store, prefix string) *Uploader {
	return &Uploader{
		store:    store,
		prefix:   prefix,
		maxWidth: DefaultMaxWidth,
		quality:  DefaultQuality,
		now:      time.Now,
	}
}

// Upload decodes a png, jpeg or gif image, shrinks it to the maximum width keeping
// its aspect ratio and uploads it as JPEG.
func (u *Uploader) Upload(ctx context.Context, r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "decode image"), ErrUnsupportedImage)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return "", errors.Mark(errors.New("empty image"), ErrUnsupportedImage)
	}
	if b.Dx() > u.maxWidth {
		height := b.Dy() * u.maxWidth / b.Dx()
		if height == 0 {
			height = 1
		}
		img = transform.Resize(img, u.maxWidth, height, transform.Linear)
		log.Debugf("resized image from %dx%d to %dx%d", b.Dx(), b.Dy(), u.maxWidth, height)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: u.quality}); err != nil {
		return "", errors.Wrap(err, "encode jpeg")
	}
	key := path.Join(u.prefix, u.now().UTC().Format("2006/01/02"), uuid.New().String()+".jpg")
	url, err := u.store.PutPublicObject(ctx, key, contentType, &buf)
	if err != nil {
		return "", err
	}
	log.Infof("uploaded project image %s", key)
	return url, nil
}
