package graph

// FolderRef addresses an upload target: the drive that owns a shared folder
// and the folder's item ID within that drive. Both values are opaque.
type FolderRef struct {
	DriveID string
	ItemID  string
}

// Item is the subset of a driveItem the uploader reports back.
type Item struct {
	ID      string
	Name    string
	Size    int64
	WebURL  string
	DriveID string
}

// driveItemResponse mirrors the Graph driveItem JSON fields this package reads.
type driveItemResponse struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Size            int64               `json:"size"`
	WebURL          string              `json:"webUrl"`
	ParentReference *parentRef          `json:"parentReference"`
	Folder          *folderFacet        `json:"folder"`
	RemoteItem      *remoteItemResponse `json:"remoteItem"`
}

// remoteItemResponse is the pointer from a sharedWithMe entry to the real
// item in the owner's drive.
type remoteItemResponse struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	ParentReference *parentRef   `json:"parentReference"`
	Folder          *folderFacet `json:"folder"`
}

type parentRef struct {
	ID      string `json:"id"`
	DriveID string `json:"driveId"`
}

type folderFacet struct {
	ChildCount int `json:"childCount"`
}

type sharedWithMeResponse struct {
	Value    []driveItemResponse `json:"value"`
	NextLink string              `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// isFolder reports whether the entry carries a folder facet. sharedWithMe
// puts the facet on remoteItem for personal accounts and on the entry itself
// for business accounts.
func (d *driveItemResponse) isFolder() bool {
	return d.Folder != nil || (d.RemoteItem != nil && d.RemoteItem.Folder != nil)
}

func (d *driveItemResponse) toItem() Item {
	item := Item{
		ID:     d.ID,
		Name:   d.Name,
		Size:   d.Size,
		WebURL: d.WebURL,
	}

	if d.ParentReference != nil {
		item.DriveID = d.ParentReference.DriveID
	}

	return item
}
