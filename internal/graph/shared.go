package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const sharedWithMePath = "/me/drive/sharedWithMe"

// ResolveSharedFolder scans the items shared with the signed-in identity and
// returns the upload target of the first folder whose name equals name
// exactly. Order is the order Graph returns; duplicates are not detected.
func (c *Client) ResolveSharedFolder(ctx context.Context, name string) (FolderRef, error) {
	c.logger.Info("resolving shared folder", slog.String("name", name))

	next := c.baseURL + sharedWithMePath
	scanned := 0

	for next != "" {
		page, err := c.sharedWithMePage(ctx, next)
		if err != nil {
			return FolderRef{}, err
		}

		for i := range page.Value {
			entry := &page.Value[i]
			scanned++

			if entry.Name != name || !entry.isFolder() {
				continue
			}

			ref, ok := folderRefFrom(entry)
			if !ok {
				return FolderRef{}, fmt.Errorf("%w: %q has no remote item reference", ErrFolderNotFound, name)
			}

			c.logger.Info("shared folder resolved",
				slog.String("name", name),
				slog.String("drive_id", ref.DriveID),
				slog.String("item_id", ref.ItemID),
			)

			return ref, nil
		}

		next = page.NextLink
	}

	return FolderRef{}, fmt.Errorf("%w: %q (scanned %d shared items)", ErrFolderNotFound, name, scanned)
}

func (c *Client) sharedWithMePage(ctx context.Context, url string) (*sharedWithMeResponse, error) {
	resp, err := c.doURL(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return nil, fmt.Errorf("listing shared items: %w", err)
	}
	defer resp.Body.Close()

	var page sharedWithMeResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("graph: decoding sharedWithMe response: %w", err)
	}

	return &page, nil
}

func folderRefFrom(entry *driveItemResponse) (FolderRef, bool) {
	remote := entry.RemoteItem
	if remote == nil || remote.ID == "" || remote.ParentReference == nil || remote.ParentReference.DriveID == "" {
		return FolderRef{}, false
	}

	return FolderRef{
		DriveID: remote.ParentReference.DriveID,
		ItemID:  remote.ID,
	}, true
}
