package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/aldoetobex/interior-mp-backend/internal/metrics"
	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

// Journal records the cleanup each relocation still owes. It is only written
// after the workflow transaction has ended, so it can share that pool.
type Journal interface {
	Record(ctx context.Context, row *models.Relocation) error
	Mark(ctx context.Context, id uint, state models.RelocationState, lastErr string) error
	Unfinished(ctx context.Context, limit int) ([]models.Relocation, error)
}

// GormJournal stores the journal in the relocations table.
type GormJournal struct {
	db *gorm.DB
}

func NewGormJournal(db *gorm.DB) *GormJournal { return &GormJournal{db: db} }

func (j *GormJournal) Record(ctx context.Context, row *models.Relocation) error {
	return j.db.WithContext(ctx).Create(row).Error
}

// Mark moves a journal row to state. A non-empty lastErr counts as a failed attempt.
func (j *GormJournal) Mark(ctx context.Context, id uint, state models.RelocationState, lastErr string) error {
	updates := map[string]any{"state": state, "last_error": lastErr}
	if lastErr != "" {
		updates["attempts"] = gorm.Expr("attempts + 1")
	}
	return j.db.WithContext(ctx).Model(&models.Relocation{}).Where("id = ?", id).Updates(updates).Error
}

func (j *GormJournal) Unfinished(ctx context.Context, limit int) ([]models.Relocation, error) {
	var rows []models.Relocation
	err := j.db.WithContext(ctx).
		Where("state <> ?", models.RelocationDone).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Relocator moves staged uploads under a project prefix as copy then delete.
type Relocator struct {
	store   ObjectStore
	journal Journal
	log     zerolog.Logger
}

func NewRelocator(store ObjectStore, journal Journal, log zerolog.Logger) *Relocator {
	return &Relocator{store: store, journal: journal, log: log.With().Str("component", "relocator").Logger()}
}

func (r *Relocator) Store() ObjectStore { return r.store }

type move struct {
	projectID uint
	src, dst  string
	replaced  bool // dst existed before the copy
}

/*
Moves collects the relocations of one workflow transaction.

Objects are copied while the transaction runs. Nothing touches the journal
or deletes anything until Finish, which runs after the transaction ends:

  - committed: every source is deleted
  - rolled back: every copy is deleted and the sources stay staged

Cleanups that fail stay in the journal for RepairRelocations.
*/
type Moves struct {
	r       *Relocator
	planned []move
}

// Begin starts an empty set of moves.
func (r *Relocator) Begin() *Moves { return &Moves{r: r} }

/*
Relocate copies the object behind rawURL to projects/project-{id}/<basename>
and returns the new public URL.

  - URLs already inside the project's prefix are returned unchanged.
  - URLs inside another project's prefix are rejected.
  - A failed copy is returned to the caller.
*/
func (m *Moves) Relocate(ctx context.Context, projectID uint, rawURL string) (string, error) {
	return m.RelocateAs(ctx, projectID, rawURL, "")
}

// RelocateAs is Relocate with an explicit destination file name. An empty
// name keeps the source's base name.
func (m *Moves) RelocateAs(ctx context.Context, projectID uint, rawURL, name string) (string, error) {
	store := m.r.store
	src, ok := store.KeyFromURL(rawURL)
	if !ok {
		return "", apperror.Validation(fmt.Sprintf("unrecognised object URL %q", rawURL))
	}
	if InProject(projectID, src) {
		return store.PublicURL(src), nil
	}
	if InAnyProject(src) {
		return "", apperror.Validation(fmt.Sprintf("object %q belongs to another project", src))
	}

	if name == "" {
		name = path.Base(src)
	}
	dst := ProjectKey(projectID, name)
	replaced, err := store.Exists(ctx, dst)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", dst, err)
	}
	if err := store.Copy(ctx, src, dst); err != nil {
		metrics.RecordRelocation("copy_failed")
		return "", fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	m.planned = append(m.planned, move{projectID: projectID, src: src, dst: dst, replaced: replaced})
	return store.PublicURL(dst), nil
}

// Finish settles every planned move. Call it once the transaction is over.
func (m *Moves) Finish(ctx context.Context, committed bool) {
	ctx = context.WithoutCancel(ctx)
	for _, mv := range m.planned {
		switch {
		case committed:
			m.r.settle(ctx, mv, models.RelocationCopied, mv.src, "ok")
		case !mv.replaced:
			m.r.settle(ctx, mv, models.RelocationDiscarded, mv.dst, "discarded")
		}
	}
	m.planned = nil
}

// settle journals the cleanup a move owes, deletes target and closes the row.
func (r *Relocator) settle(ctx context.Context, mv move, state models.RelocationState, target, outcome string) {
	row := models.Relocation{ProjectID: mv.projectID, SourceKey: mv.src, DestKey: mv.dst, State: state}
	if err := r.journal.Record(ctx, &row); err != nil {
		r.log.Error().Err(err).Str("src", mv.src).Str("dst", mv.dst).Msg("journal write failed")
	}

	if err := r.store.Delete(ctx, target); err != nil {
		if row.ID != 0 {
			r.mark(ctx, row.ID, state, err)
		}
		metrics.RecordRelocation("delete_failed")
		r.log.Warn().Err(err).Str("key", target).Str("state", string(state)).Msg("object left behind")
		return
	}
	if row.ID != 0 {
		r.mark(ctx, row.ID, models.RelocationDone, nil)
	}
	metrics.RecordRelocation(outcome)
}

func (r *Relocator) mark(ctx context.Context, id uint, state models.RelocationState, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := r.journal.Mark(ctx, id, state, msg); err != nil {
		r.log.Error().Err(err).Uint("relocation_id", id).Str("state", string(state)).Msg("journal update failed")
	}
}

// RepairReport summarises one repair pass.
type RepairReport struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

const repairBatch = 500

/*
RepairRelocations finishes cleanups that failed after a transaction ended.

Copied rows still have their source staged; discarded rows still have the copy
of a rolled back transaction. Deleting an absent key succeeds, so running it
repeatedly is safe.
*/
func (r *Relocator) RepairRelocations(ctx context.Context) (RepairReport, error) {
	var report RepairReport
	rows, err := r.journal.Unfinished(ctx, repairBatch)
	if err != nil {
		return report, fmt.Errorf("load unfinished relocations: %w", err)
	}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		if err := r.repairOne(ctx, row); err != nil {
			report.Failed++
			r.log.Warn().Err(err).Uint("relocation_id", row.ID).Str("src", row.SourceKey).Msg("relocation repair failed")
			continue
		}
		report.Repaired++
	}
	if report.Scanned > 0 {
		r.log.Info().Int("scanned", report.Scanned).Int("repaired", report.Repaired).Int("failed", report.Failed).Msg("relocation repair pass")
	}
	return report, nil
}

func (r *Relocator) repairOne(ctx context.Context, row models.Relocation) error {
	target := row.SourceKey
	if row.State == models.RelocationDiscarded {
		target = row.DestKey
	}
	if err := r.store.Delete(ctx, target); err != nil {
		r.mark(ctx, row.ID, row.State, err)
		metrics.RecordRelocation("repair_failed")
		return err
	}
	r.mark(ctx, row.ID, models.RelocationDone, nil)
	metrics.RecordRelocation("repaired")
	return nil
}
