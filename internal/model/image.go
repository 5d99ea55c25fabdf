package model

import "time"

// Image represents a saved gallery image.  The binary lives in the storage
// collaborator under Path; the row lives in `images` and its tags in
// `image_tags`.  UserID is fixed at creation and never reassigned.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – owning user.
//  Path        – public path of the stored file (e.g. /uploads/image-...png).
//  Name        – title shown in the gallery.
//  UsedPrompt  – prompt used to generate the image, empty for uploads.
//  Description – free text description.
//  Tags        – normalized tag labels in submission order.
//  Owner       – owner summary, populated only by single-image lookups.
type Image struct {
	ID          uint64       // images.id
	UserID      uint64       // images.user_id
	Path        string       // images.path
	Name        string       // images.name
	UsedPrompt  string       // images.used_prompt
	Description string       // images.description
	Tags        []string     // image_tags.tag
	Owner       *UserSummary // joined from users
	CreatedAt   time.Time    // images.created_at
	UpdatedAt   time.Time    // images.updated_at
}

// ImagePatch carries the owner-mutable fields of an image.  A nil field is
// left untouched by an update.
type ImagePatch struct {
	Path        *string
	Name        *string
	UsedPrompt  *string
	Description *string
	Tags        *[]string
}

// Empty reports whether the patch would change nothing.
func (p ImagePatch) Empty() bool {
	return p.Path == nil && p.Name == nil && p.UsedPrompt == nil && p.Description == nil && p.Tags == nil
}

// Apply copies the set fields of the patch onto img.
func (p ImagePatch) Apply(img *Image) {
	if p.Path != nil {
		img.Path = *p.Path
	}
	if p.Name != nil {
		img.Name = *p.Name
	}
	if p.UsedPrompt != nil {
		img.UsedPrompt = *p.UsedPrompt
	}
	if p.Description != nil {
		img.Description = *p.Description
	}
	if p.Tags != nil {
		img.Tags = append([]string(nil), (*p.Tags)...)
	}
}

// ImageQuery filters a gallery listing.  Search is matched as a
// case-insensitive substring of name, used_prompt or description; every
// entry of Tags must be present on a matching image.
type ImageQuery struct {
	Search string
	Tags   []string
}

// TagCount is one row of the tag popularity ranking.
type TagCount struct {
	Name  string
	Count int
}
