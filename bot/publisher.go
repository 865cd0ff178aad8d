package bot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"wetterpost/api"
	"wetterpost/internal/errorutil"
	"wetterpost/post"
)

// ErrNotAuthenticated is returned by Publish when there is no logged-in
// upload client.
var ErrNotAuthenticated = errors.New("upload client is not authenticated")

// Uploader posts an ordered image album.
type Uploader interface {
	Authenticated() bool
	AlbumUpload(ctx context.Context, paths []string, caption string, loc post.Location) (string, error)
}

// Renderer draws the image for one day offset.
type Renderer interface {
	Render(day int, pc *post.PostContext) (image.Image, error)
}

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	OutputDir       string // images land in OutputDir/<day>.jpg
	CaptionTemplate string
	JPEGQuality     int
	DryRun          bool // render and write, but do not upload
}

// Publisher renders a post context to disk and uploads it.
type Publisher struct {
	renderer Renderer
	uploader Uploader
	opts     PublisherOptions
	logger   *slog.Logger
}

func NewPublisher(renderer Renderer, uploader Uploader, opts PublisherOptions, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 95
	}
	return &Publisher{renderer: renderer, uploader: uploader, opts: opts, logger: log}
}

// Publish renders every day, writes the images and uploads them with the
// caption. Upload failures are not retried and leave the images on disk.
func (p *Publisher) Publish(ctx context.Context, pc *post.PostContext) error {
	if !p.opts.DryRun && (p.uploader == nil || !p.uploader.Authenticated()) {
		return errorutil.LogAndReturn(p.logger, "publish", ErrNotAuthenticated)
	}

	paths, err := p.WriteImages(pc)
	if err != nil {
		return err
	}

	caption := BuildCaption(p.opts.CaptionTemplate, pc.Water)

	if p.opts.DryRun {
		captionPath := filepath.Join(p.opts.OutputDir, "caption.txt")
		if err := errorutil.SafeFileWrite(p.logger, captionPath, []byte(caption), 0644); err != nil {
			return err
		}
		p.logger.Info("Dry run, upload skipped",
			slog.Int("images", len(paths)),
			slog.String("caption_file", captionPath))
		return nil
	}

	mediaID, err := p.uploader.AlbumUpload(ctx, paths, caption, pc.Location)
	if err != nil {
		var upErr *api.UploadError
		if !errors.As(err, &upErr) {
			err = &api.UploadError{Images: paths, Err: err}
		}
		attrs := []slog.Attr{
			slog.Int("images", len(paths)),
			slog.String("output_dir", p.opts.OutputDir),
		}
		var netErr *errorutil.NetworkError
		if errors.As(err, &netErr) {
			attrs = append(attrs, slog.Bool("retryable", netErr.IsRetryable()))
		}
		return errorutil.LogAndReturn(p.logger, "album upload", err, attrs...)
	}

	p.logger.Info("Post published",
		slog.String("media_id", mediaID),
		slog.Int("images", len(paths)),
		slog.Int("cities", len(pc.Cities)))
	return nil
}

// WriteImages renders day 0 to DayCount-1 and stores them as JPEG files in
// order. Images left from an earlier run are removed first.
func (p *Publisher) WriteImages(pc *post.PostContext) ([]string, error) {
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	if err := errorutil.EnsureDirectoryWithLogging(p.logger, p.opts.OutputDir, 0755); err != nil {
		return nil, err
	}
	if _, err := errorutil.RemoveMatching(p.logger, p.opts.OutputDir, "*.jpg"); err != nil {
		errorutil.LogWarning(p.logger, "remove stale images", err)
	}

	paths := make([]string, 0, pc.DayCount)
	for day := 0; day < pc.DayCount; day++ {
		img, err := p.renderer.Render(day, pc)
		if err != nil {
			return nil, errorutil.LogAndWrap(p.logger, fmt.Sprintf("render day %d", day), err)
		}

		path := filepath.Join(p.opts.OutputDir, strconv.Itoa(day)+".jpg")
		if err := gg.SaveJPG(path, flatten(img), p.opts.JPEGQuality); err != nil {
			fileErr := errorutil.LogFileError(p.logger, errorutil.NewFileError("write_image", path, err))
			return nil, fileErr
		}
		p.logger.Debug("Image written", slog.Int("day", day), slog.String("path", path))
		paths = append(paths, path)
	}
	return paths, nil
}

// flatten composites img over an opaque white canvas so JPEG encoding sees
// plain RGB.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
