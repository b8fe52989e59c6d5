package utils

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

// LogProjectHistory inserts an audit record into project_histories.
// Pass the workflow transaction so the entry commits or rolls back with it.
// Errors are ignored on purpose (best-effort logging).
func LogProjectHistory(
	ctx context.Context,
	db *gorm.DB,
	projectID, actorID uint,
	action string,
	oldS, newS models.ProjectStatus,
	meta map[string]any,
) {
	var raw datatypes.JSON
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			raw = datatypes.JSON(b)
		}
	}
	_ = db.WithContext(ctx).Create(&models.ProjectHistory{
		ProjectID: projectID,
		ActorID:   actorID,
		Action:    action,
		OldStatus: oldS,
		NewStatus: newS,
		Meta:      raw,
		CreatedAt: time.Now(),
	}).Error
}
