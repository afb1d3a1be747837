package commands

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/lumenstage/stagewire/pkg/artifact"
	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/gallery"
	"github.com/lumenstage/stagewire/pkg/link"
	"github.com/lumenstage/stagewire/pkg/render"
)

var (
	flagRenderHub       string
	flagRenderURL       string
	flagRenderArtifacts string
	flagRenderGallery   string
	flagRenderStubDelay time.Duration
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Turn render commands into images",
	Long: `Consume render commands and drive the image backend, broadcasting
render_start, render_progress, render_complete and render_error along
the way.

With --renderer the service drives a ComfyUI-compatible server; without
it a stub renderer produces placeholder images, which keeps the rest of
the pipeline exercisable with no GPU anywhere. Images and their JSON
sidecars land in the artifact store (local directory by default, S3 when
configured in the settings file); completed jobs are indexed in the
gallery when one is configured.

Examples:
  stagewire render
  stagewire render --renderer http://127.0.0.1:8188
  stagewire render --artifacts ./out --gallery ./out/index`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&flagRenderHub, "hub", "", "hub endpoint (default ws://127.0.0.1:5555/ws)")
	renderCmd.Flags().StringVar(&flagRenderURL, "renderer", "",
		"ComfyUI-compatible server root; empty selects the stub renderer")
	renderCmd.Flags().StringVar(&flagRenderArtifacts, "artifacts", "",
		"image output directory (default under the system temp dir)")
	renderCmd.Flags().StringVar(&flagRenderGallery, "gallery", "",
		"gallery index directory; empty disables indexing")
	renderCmd.Flags().DurationVar(&flagRenderStubDelay, "stub-delay", 2*time.Second,
		"simulated render time for the stub renderer")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("hub") {
		settings.Hub.URL = flagRenderHub
	}
	rendererURL := settings.Render.RendererURL
	if cmd.Flags().Changed("renderer") {
		rendererURL = flagRenderURL
	}
	artifactsDir := settings.Render.Artifacts
	if cmd.Flags().Changed("artifacts") {
		artifactsDir = flagRenderArtifacts
	}
	galleryDir := settings.Render.GalleryDir
	if cmd.Flags().Changed("gallery") {
		galleryDir = flagRenderGallery
	}

	store, err := newArtifactStore(settings.Render, artifactsDir)
	if err != nil {
		return err
	}

	var index gallery.Index
	if galleryDir != "" {
		index, err = gallery.NewBadger(gallery.BadgerOptions{Dir: galleryDir})
		if err != nil {
			return err
		}
		defer index.Close()
	}

	ctx, stop := signalContext()
	defer stop()

	client := link.Dial(settings.linkConfig(envelope.SourceRender, envelope.RoleDual))
	defer client.Close()

	svc := &render.Service{
		Link:     client,
		Renderer: newRenderer(rendererURL),
		Builder: render.Builder{
			Style:    settings.Render.Style,
			Detail:   settings.Render.Detail,
			Suffix:   settings.Render.Suffix,
			Negative: settings.Render.Negative,
		},
		Store:   store,
		Gallery: index,
	}
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newRenderer(url string) render.Renderer {
	if url == "" {
		return &render.StubRenderer{Delay: flagRenderStubDelay}
	}
	return &render.HTTPRenderer{BaseURL: url}
}

// newArtifactStore picks S3 when a bucket is configured, the local
// directory store otherwise. A nil store lets the service fall back to
// its temp-dir default.
func newArtifactStore(rs RenderSettings, dir string) (artifact.Store, error) {
	if rs.S3.Bucket != "" {
		return artifact.NewS3(newS3Client(rs.S3), rs.S3.Bucket, rs.S3.Prefix), nil
	}
	if dir == "" {
		return nil, nil
	}
	return artifact.NewDir(dir)
}

// newS3Client builds an S3 client for AWS or any S3-compatible endpoint.
func newS3Client(cfg S3Settings) *s3.Client {
	accessKey := cfg.AccessKey
	if accessKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	secretKey := cfg.SecretKey
	if secretKey == "" {
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: accessKey, SecretAccessKey: secretKey}, nil
		}),
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		// MinIO-style endpoints route by path, not virtual host.
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}
