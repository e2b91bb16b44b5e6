// Package frameio converts latent frames to and from image files.
//
// Gray renders a single latent channel as a normalized grayscale image,
// Resize scales it for viewing, and WritePNG stores it. Decode reads
// PNG, WebP, or BMP files into [1, 3, height, width] tensors for
// tooling.
//
// Example:
//
//	img, err := frameio.Gray(frame, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := frameio.WritePNG("frame_0000.png", frameio.Resize(img, 256, 144)); err != nil {
//	    log.Fatal(err)
//	}
package frameio
