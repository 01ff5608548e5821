package services

import "context"

// ImageResult is one generated image. Providers return either a URL to
// download from or the image bytes directly.
type ImageResult struct {
	URL    string
	Data   []byte
	Format string // file extension without the dot, e.g. "png"
}

// ImageGenerator turns a text prompt into a single image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)
}
