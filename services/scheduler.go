package services

import (
	"log"
	"time"

	"game-match-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartRetentionScheduler purges PENDING history rows whose owning session no
// longer exists and that have been untouched for longer than the retention
// window. Live sessions are never swept here: disconnect detection stays
// reactive, driven entirely by the connected heartbeat.
func (s *HistoryService) StartRetentionScheduler(retention time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-retention)
			res := s.DB.
				Where("result = ? AND updated_at < ?", models.ResultPending, cutoff).
				Where("session_id NOT IN (?)", s.DB.Model(&models.Session{}).Select("id")).
				Delete(&models.MatchHistory{})
			if res.Error != nil {
				log.Printf("[Retention] DB error: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("🧹 Purged %d orphaned pending history rows", res.RowsAffected)
			}
		}),
	)
}
