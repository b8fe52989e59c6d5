package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/interior-mp-backend/pkg/sanitize"
)

// ObjectStore is the bucket the workflow writes to. Keys are slash-separated
// paths relative to the bucket root.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	// Copy overwrites dst if it already exists.
	Copy(ctx context.Context, src, dst string) error
	// Delete succeeds for keys that are already gone.
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	// List returns full keys directly under prefix in natural order.
	List(ctx context.Context, prefix string) ([]string, error)
	PublicURL(key string) string
	// KeyFromURL maps a public URL (or a bare key) back to its key.
	KeyFromURL(raw string) (string, bool)
}

const (
	projectsRoot    = "projects"
	stagingRoot     = "uploads"
	placeholderName = ".placeholder"
)

// ProjectPrefix is the key prefix owned by one project: projects/project-{id}
func ProjectPrefix(projectID uint) string {
	return fmt.Sprintf("%s/project-%d", projectsRoot, projectID)
}

// ParseProjectPrefix returns the project id of a prefix produced by ProjectPrefix.
func ParseProjectPrefix(prefix string) (uint, error) {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rest, ok := strings.CutPrefix(prefix, projectsRoot+"/project-")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return 0, fmt.Errorf("invalid storage prefix %q", prefix)
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid storage prefix %q", prefix)
	}
	return uint(id), nil
}

// ProjectKey places a file name directly under the project prefix.
func ProjectKey(projectID uint, filename string) string {
	return path.Join(ProjectPrefix(projectID), sanitize.FileName(filename))
}

// PlaceholderKey marks a freshly initialized project prefix.
func PlaceholderKey(projectID uint) string {
	return path.Join(ProjectPrefix(projectID), placeholderName)
}

// InProject reports whether key lives under the project's prefix.
func InProject(projectID uint, key string) bool {
	return strings.HasPrefix(key, ProjectPrefix(projectID)+"/")
}

// InAnyProject reports whether key lives under some project prefix.
func InAnyProject(key string) bool {
	return strings.HasPrefix(key, projectsRoot+"/project-")
}

// StagingKey builds the temporary key of a direct upload:
// uploads/<kind>/room-<roomID>-<uploadType>-<unix>-<rand8><ext>
// The base name is unique on its own so relocation can keep it verbatim.
func StagingKey(kind, roomID, uploadType, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(sanitize.FileName(filename)))
	if roomID == "" {
		roomID = "none"
	}
	parts := []string{
		"room-" + sanitize.FileName(roomID),
		sanitize.FileName(uploadType),
		strconv.FormatInt(now.Unix(), 10),
		uuid.NewString()[:8],
	}
	return path.Join(stagingRoot, sanitize.FileName(kind), strings.Join(parts, "-")+ext)
}

// ProjectUploadKey names a direct upload into a project prefix, keeping the
// client's file name but making it unique.
func ProjectUploadKey(projectID uint, uploadType, filename string, now time.Time) string {
	name := sanitize.FileName(filename)
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return ProjectKey(projectID, fmt.Sprintf("%s-%s-%d-%s%s", sanitize.FileName(uploadType), stem, now.Unix(), uuid.NewString()[:8], ext))
}
