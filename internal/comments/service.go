// Package comments stores immutable comments on a project or on one of its
// final designs.
package comments

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aldoetobex/interior-mp-backend/internal/auth"
	"github.com/aldoetobex/interior-mp-backend/internal/metrics"
	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

const maxTextLen = 2000

// ProjectAccess resolves a project the caller may read, or NotFound.
type ProjectAccess interface {
	Readable(ctx context.Context, projectID uint, caller auth.Identity) (models.Project, error)
}

// Target is a whole project when DesignID is zero, otherwise one final design.
type Target struct {
	ProjectID uint
	DesignID  uint
}

// Comment is a stored comment joined with its author's email.
type Comment struct {
	ID          uint      `json:"id"`
	ProjectID   uint      `json:"project_id"`
	DesignID    *uint     `json:"design_id,omitempty"`
	UserID      uint      `json:"user_id"`
	AuthorEmail string    `json:"author_email"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

type Service struct {
	db     *gorm.DB
	access ProjectAccess
	now    func() time.Time
}

func NewService(db *gorm.DB, access ProjectAccess) *Service {
	return &Service{db: db, access: access, now: time.Now}
}

// resolve checks read access to the project and, for design targets, that
// the design belongs to it.
func (s *Service) resolve(ctx context.Context, target Target, caller auth.Identity) error {
	p, err := s.access.Readable(ctx, target.ProjectID, caller)
	if err != nil {
		return err
	}
	if err := auth.Authorize(auth.ActionComment, caller, auth.RefOf(p)); err != nil {
		return err
	}
	if target.DesignID == 0 {
		return nil
	}
	var d models.FinalDesign
	err = s.db.WithContext(ctx).Where("id = ? AND project_id = ?", target.DesignID, target.ProjectID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("Design not found")
	}
	if err != nil {
		return apperror.Internal("Could not load design", err)
	}
	return nil
}

// Add stores a comment by author on target.
func (s *Service) Add(ctx context.Context, target Target, author auth.Identity, text string) (c Comment, err error) {
	defer func() { metrics.RecordOperation("add_comment", err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, apperror.Validation("Comment text is required")
	}
	if len([]rune(text)) > maxTextLen {
		return Comment{}, apperror.Errorf("Comment must be at most %d characters", maxTextLen)
	}
	if err := s.resolve(ctx, target, author); err != nil {
		return Comment{}, err
	}

	now := s.now().UTC()
	if target.DesignID == 0 {
		row := models.ProjectComment{ProjectID: target.ProjectID, UserID: author.UserID, Text: text, CreatedAt: now}
		if err := s.db.WithContext(ctx).Omit("Author").Create(&row).Error; err != nil {
			return Comment{}, apperror.CreationFailed("Could not add comment", err)
		}
		return Comment{ID: row.ID, ProjectID: row.ProjectID, UserID: row.UserID, AuthorEmail: author.Email, Text: row.Text, CreatedAt: row.CreatedAt}, nil
	}

	row := models.DesignComment{ProjectID: target.ProjectID, DesignID: target.DesignID, UserID: author.UserID, Text: text, CreatedAt: now}
	if err := s.db.WithContext(ctx).Omit("Author").Create(&row).Error; err != nil {
		return Comment{}, apperror.CreationFailed("Could not add comment", err)
	}
	designID := row.DesignID
	return Comment{ID: row.ID, ProjectID: row.ProjectID, DesignID: &designID, UserID: row.UserID, AuthorEmail: author.Email, Text: row.Text, CreatedAt: row.CreatedAt}, nil
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").Order("created_at DESC").Order("id DESC")
}

// List returns the comments of target, newest first.
func (s *Service) List(ctx context.Context, target Target, caller auth.Identity) ([]Comment, error) {
	if err := s.resolve(ctx, target, caller); err != nil {
		return nil, err
	}

	out := []Comment{}
	q := newestFirst(s.db.WithContext(ctx))
	if target.DesignID == 0 {
		var rows []models.ProjectComment
		if err := q.Where("project_id = ?", target.ProjectID).Find(&rows).Error; err != nil {
			return nil, apperror.Internal("Could not list comments", err)
		}
		for _, r := range rows {
			out = append(out, Comment{ID: r.ID, ProjectID: r.ProjectID, UserID: r.UserID, AuthorEmail: r.Author.Email, Text: r.Text, CreatedAt: r.CreatedAt})
		}
		return out, nil
	}

	var rows []models.DesignComment
	if err := q.Where("project_id = ? AND design_id = ?", target.ProjectID, target.DesignID).Find(&rows).Error; err != nil {
		return nil, apperror.Internal("Could not list comments", err)
	}
	for _, r := range rows {
		designID := r.DesignID
		out = append(out, Comment{ID: r.ID, ProjectID: r.ProjectID, DesignID: &designID, UserID: r.UserID, AuthorEmail: r.Author.Email, Text: r.Text, CreatedAt: r.CreatedAt})
	}
	return out, nil
}
