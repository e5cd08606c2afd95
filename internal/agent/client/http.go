package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
	"github.com/dmitrijs2005/edgekeeper/internal/netx"
)

const (
	heartbeatPath = "/heartbeat"
	metadataPath  = "/events/metadata"
	imagesPath    = "/events/images/"
)

// HTTPClient talks to the central server's HTTP API.
type HTTPClient struct {
	baseURL  string
	deviceID string
	http     *http.Client
}

// NewHTTPClient returns a client for baseURL (e.g. http://host:8080/api).
// timeout bounds every request, including the body transfer.
func NewHTTPClient(baseURL, deviceID string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		deviceID: deviceID,
		http:     &http.Client{Timeout: timeout},
	}
}

// SendHeartbeat posts the liveness beacon.
func (c *HTTPClient) SendHeartbeat(ctx context.Context, hb models.Heartbeat) error {
	resp, err := c.postJSON(ctx, heartbeatPath, hb)
	if err != nil {
		return err
	}
	defer netx.DrainAndClose(resp.Body)

	return classify(netx.CheckResponse(resp))
}

// UploadMetadata sends an event with its readings and image descriptors.
// The server treats a repeated LocalID as a no-op, so this is safe to call
// again after a timeout with unknown outcome. A 202 or a "processing" ack
// yields common.ErrStillProcessing.
func (c *HTTPClient) UploadMetadata(ctx context.Context, p models.MetadataPayload) error {
	resp, err := c.postJSON(ctx, metadataPath, p)
	if err != nil {
		return err
	}
	defer netx.DrainAndClose(resp.Body)

	if err := netx.CheckResponse(resp); err != nil {
		return classify(err)
	}
	if resp.StatusCode == http.StatusAccepted {
		return fmt.Errorf("event %s: %w", p.LocalID, common.ErrStillProcessing)
	}

	var ack models.MetadataAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		if errors.Is(err, io.EOF) {
			// bare 2xx without a body counts as confirmation
			return nil
		}
		return fmt.Errorf("decode metadata ack: %w: %w", common.ErrNetwork, err)
	}

	switch {
	case ack.LocalID != "" && ack.LocalID != p.LocalID:
		return fmt.Errorf("ack for %s while uploading %s: %w", ack.LocalID, p.LocalID, common.ErrNetwork)
	case ack.Status == models.AckProcessing:
		return fmt.Errorf("event %s: %w", p.LocalID, common.ErrStillProcessing)
	case ack.Status == "" || ack.Status == models.AckConfirmed:
		return nil
	default:
		return fmt.Errorf("event %s: unexpected ack status %q: %w", p.LocalID, ack.Status, common.ErrNetwork)
	}
}

// UploadImage streams the image file with its SHA-256 in a header. The
// server recomputes the checksum; a mismatch (409 or 422) is reported as
// common.ErrIntegrity.
func (c *HTTPClient) UploadImage(ctx context.Context, img *models.ImageRecord) error {
	f, size, err := openImage(img)
	if err != nil {
		return err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+imagesPath+url.PathEscape(img.ID), f)
	if err != nil {
		return fmt.Errorf("build image request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", common.ImageContentType)
	req.Header.Set(common.ChecksumHeaderName, img.Checksum)
	req.Header.Set(common.DeviceHeaderName, c.deviceID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload image %s: %w: %w", img.ID, common.ErrNetwork, err)
	}
	defer netx.DrainAndClose(resp.Body)

	if err := classify(netx.CheckResponse(resp)); err != nil {
		return fmt.Errorf("upload image %s: %w", img.ID, err)
	}
	return nil
}

// openImage opens the file behind img and checks it still has the size
// recorded at capture time. A different size means the bytes on disk no
// longer match the stored checksum.
func openImage(img *models.ImageRecord) (*os.File, int64, error) {
	f, err := os.Open(img.FilePath)
	if err != nil {
		return nil, 0, fmt.Errorf("open image %s: %w: %w", img.ID, common.ErrStorage, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat image %s: %w: %w", img.ID, common.ErrStorage, err)
	}
	if fi.Size() != img.SizeBytes {
		_ = f.Close()
		return nil, 0, fmt.Errorf("image %s is %d bytes on disk, %d recorded: %w",
			img.ID, fi.Size(), img.SizeBytes, common.ErrIntegrity)
	}
	return f, fi.Size(), nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.DeviceHeaderName, c.deviceID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w: %w", path, common.ErrNetwork, err)
	}
	return resp, nil
}

// classify maps a status error onto the failure taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch netx.StatusCode(err) {
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w", common.ErrIntegrity, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
}
