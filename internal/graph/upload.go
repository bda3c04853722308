package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// SimpleUploadMaxSize is the largest file Graph accepts in a single PUT (4 MiB).
const SimpleUploadMaxSize = 4 * 1024 * 1024

// UploadFile reads localPath fully into memory and PUTs it as remoteName
// under the folder itemID in drive driveID. remoteName may contain slashes;
// each segment is escaped separately.
func (c *Client) UploadFile(ctx context.Context, driveID, itemID, localPath, remoteName string) (*Item, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrUpload, localPath, err)
	}

	if len(data) > SimpleUploadMaxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, simple upload limit is %d",
			ErrUpload, localPath, len(data), SimpleUploadMaxSize)
	}

	c.logger.Info("simple upload",
		slog.String("drive_id", driveID),
		slog.String("item_id", itemID),
		slog.String("name", remoteName),
		slog.Int("size", len(data)),
	)

	path := fmt.Sprintf("/drives/%s/items/%s:/%s:/content",
		url.PathEscape(driveID), url.PathEscape(itemID), encodePathSegments(remoteName))

	resp, err := c.Do(ctx, http.MethodPut, path, "application/octet-stream", bytes.NewReader(data))
	if err != nil {
		var gErr *GraphError
		if errors.As(err, &gErr) {
			return nil, fmt.Errorf("%w: %w", ErrUpload, err)
		}

		return nil, err
	}
	defer resp.Body.Close()

	// 200 replaced an existing file, 201 created a new one.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrUpload, resp.StatusCode, path)
	}

	var dir driveItemResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&dir); decErr != nil {
		return nil, fmt.Errorf("%w: decoding upload response: %w", ErrUpload, decErr)
	}

	item := dir.toItem()

	c.logger.Info("upload complete",
		slog.String("item_id", item.ID),
		slog.String("name", item.Name),
		slog.Int("status", resp.StatusCode),
	)

	return &item, nil
}

// encodePathSegments escapes each segment of a slash-separated path so that
// characters like #, ?, % and spaces survive interpolation into a Graph URL.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}
