package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Download streams url into dest, replacing any existing file. Progress is rendered to
// progressWriter when it is not nil. On failure the partial file is removed.
func (c *Client) Download(ctx context.Context, url, dest string, progressWriter io.Writer) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, gameerr.New(gameerr.Filesystem, "create download folder", err)
	}

	req, err := c.createRequest(ctx, http.MethodGet, url)
	if err != nil {
		return 0, gameerr.New(gameerr.Internal, "build download request", err)
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.sendRequest(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, gameerr.New(gameerr.Network, "download failed", err)
	}
	defer closeResponseBody(resp)
	if err := classifyStatus(resp); err != nil {
		return 0, err
	}

	file, err := os.Create(dest)
	if err != nil {
		return 0, gameerr.New(gameerr.Filesystem, "create download file", err)
	}

	name := filepath.Base(dest)
	var reader io.Reader = c.Limiter.wrap(ctx, resp.Body)
	if progressWriter != nil {
		bar := progressbar.NewOptions64(
			resp.ContentLength, // -1 shows a spinner
			progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", name)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWriter(progressWriter),
			progressbar.OptionThrottle(500*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowCount(),
		)
		pr := progressbar.NewReader(reader, bar)
		reader = &pr
		defer bar.Finish()
	}

	buffer := make([]byte, 32*1024)
	written, err := io.CopyBuffer(file, reader, buffer)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		if ctx.Err() != nil {
			log.Info().Str("file", name).Msg("Download cancelled")
			return 0, ctx.Err()
		}
		return 0, gameerr.New(gameerr.Network, fmt.Sprintf("download %s", name), err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		_ = os.Remove(dest)
		return 0, gameerr.Newf(gameerr.Network, "download %s truncated: got %d of %d bytes", name, written, resp.ContentLength)
	}

	log.Info().Str("file", name).Int64("bytes", written).Msg("Download finished")
	return written, nil
}
