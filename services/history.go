package services

import (
	"context"
	"errors"
	"log"
	"strconv"

	"game-match-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HistoryRecorder is the coordinator's view of match history storage. Rows
// are created lazily on the first confirmed score report and finalized
// together with session deletion. Deletion happens only on the leave and
// disconnect cleanup paths.
type HistoryRecorder interface {
	Create(ctx context.Context, history *models.MatchHistory) error
	// FirstPending returns the earliest unresolved row for a (session, user)
	// pair, or nil when none exists.
	FirstPending(ctx context.Context, sessionID, userID string) (*models.MatchHistory, error)
	Updates(ctx context.Context, id string, fields map[string]interface{}) error
	DeleteFirstPending(ctx context.Context, sessionID, userID string) error
}

// HistoryService implements HistoryRecorder on Postgres and carries the REST
// read endpoints for resolved match history.
type HistoryService struct {
	DB *gorm.DB
}

func NewHistoryService(db *gorm.DB) *HistoryService {
	return &HistoryService{DB: db}
}

func (s *HistoryService) Create(ctx context.Context, history *models.MatchHistory) error {
	return s.DB.WithContext(ctx).Create(history).Error
}

func (s *HistoryService) FirstPending(ctx context.Context, sessionID, userID string) (*models.MatchHistory, error) {
	var history models.MatchHistory
	err := s.DB.WithContext(ctx).
		Where("session_id = ? AND player1_id = ? AND result = ?", sessionID, userID, models.ResultPending).
		Order("created_at DESC").
		First(&history).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &history, nil
}

func (s *HistoryService) Updates(ctx context.Context, id string, fields map[string]interface{}) error {
	return s.DB.WithContext(ctx).
		Model(&models.MatchHistory{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (s *HistoryService) DeleteFirstPending(ctx context.Context, sessionID, userID string) error {
	history, err := s.FirstPending(ctx, sessionID, userID)
	if err != nil || history == nil {
		return err
	}
	return s.DB.WithContext(ctx).Delete(&models.MatchHistory{}, "id = ?", history.ID).Error
}

// ListUserHistory returns a user's resolved matches, newest first.
// GET /s/history/:user_id?limit=20
func (s *HistoryService) ListUserHistory(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows []models.MatchHistory
	err = s.DB.Where("player1_id = ? AND result <> ?", userID, models.ResultPending).
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		log.Printf("DB Error listing history for user %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	wins := 0
	for _, row := range rows {
		if row.Result == models.ResultWin {
			wins++
		}
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"history": rows,
		"count":   len(rows),
		"wins":    wins,
		"losses":  len(rows) - wins,
	})
}

// GetMatch returns a single history row by id.
// GET /s/history/match/:id
func (s *HistoryService) GetMatch(c *fiber.Ctx) error {
	id := c.Params("id")

	var row models.MatchHistory
	if err := s.DB.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "match not found"})
		}
		log.Printf("DB Error fetching match %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	return c.JSON(row)
}
