package model

import "time"

// Build identifies one uploaded Storybook bundle within a project. Builds
// have no database record of their own: the object-store prefix
// projects/{project}/builds/{id}/ is the build.
type Build struct {
	ID        string    `json:"build_id"`
	ProjectID string    `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BuildFile is one stored file of a build. The upload echo carries path
// and size; manifest entries add the modification time.
type BuildFile struct {
	Path         string     `json:"path"`
	SizeBytes    int64      `json:"size_bytes"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}
