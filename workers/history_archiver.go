package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"game-match-system/models"
	"game-match-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryArchiver exports finalized match history rows to R2 as JSON batches,
// so resolved matches survive database retention independently of the live
// tables.
type HistoryArchiver struct {
	DB           *gorm.DB
	lastExported time.Time
}

func NewHistoryArchiver(db *gorm.DB) *HistoryArchiver {
	return &HistoryArchiver{
		DB:           db,
		lastExported: time.Now(),
	}
}

// PollFinalizedHistory runs the archiver until the context is cancelled.
func PollFinalizedHistory(ctx context.Context, archiver *HistoryArchiver, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("History archiver started (interval %s)", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("History archiver stopped")
			return
		case <-ticker.C:
			if err := archiver.ExportBatch(ctx); err != nil {
				log.Printf("[Archiver] Export failed: %v", err)
			}
		}
	}
}

// ExportBatch uploads every row finalized since the previous export. The
// watermark only advances after a successful upload, so a failed batch is
// retried on the next tick.
func (a *HistoryArchiver) ExportBatch(ctx context.Context) error {
	since := a.lastExported

	var rows []models.MatchHistory
	err := a.DB.WithContext(ctx).
		Where("result <> ? AND updated_at > ?", models.ResultPending, since).
		Order("updated_at ASC").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to load finalized history: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"exported_at": time.Now().UTC(),
		"since":       since.UTC(),
		"matches":     rows,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal history batch: %w", err)
	}

	key := fmt.Sprintf("history/%s/batch-%s.json",
		time.Now().UTC().Format("2006/01/02"), uuid.NewString())
	if err := utils.UploadBytesToR2(ctx, key, payload, "application/json"); err != nil {
		return err
	}

	a.lastExported = rows[len(rows)-1].UpdatedAt
	log.Printf("📦 Archived %d finalized matches to %s", len(rows), key)
	return nil
}
