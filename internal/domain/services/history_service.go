package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
	"github.com/devilmonastery/studenthistory/internal/pkg/timeutil"
)

// DefaultLessonLimit is how many lessons the history page shows
const DefaultLessonLimit = 5

const (
	paymentMarker   = "Оплата"
	lessonDoneLabel = "Урок завершен"
)

// SheetSource reads a student's worksheet
type SheetSource interface {
	StudentSheet(ctx context.Context, worksheet string, useCache bool) (*entities.StudentSheet, error)
}

// HistoryService turns worksheet rows into the lesson history and balance
type HistoryService struct {
	source SheetSource
	log    *slog.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(source SheetSource, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		source: source,
		log:    logger.With(slog.String("component", "history_service")),
	}
}

// Lessons returns up to limit lessons from the top of the worksheet.
// Payment rows keep their description, everything else is a finished lesson.
func (s *HistoryService) Lessons(ctx context.Context, student *entities.Student, limit int) (history *entities.LessonHistory, err error) {
	defer func() { metrics.RecordServiceOperation("history", "lessons", err) }()

	if limit <= 0 {
		limit = DefaultLessonLimit
	}

	sheet, err := s.source.StudentSheet(ctx, student.SheetName, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", student.SheetName, err)
	}

	history = &entities.LessonHistory{Limit: limit}
	remaining := limit
	for _, row := range sheet.History {
		if remaining == 0 {
			break
		}
		if len(row) < 2 {
			continue
		}

		date, err := timeutil.ParseSheetDate(row[0])
		if err != nil {
			s.log.Debug("Skipping row with unparsable date",
				"worksheet", student.SheetName,
				"value", row[0])
			continue
		}

		label := row[1]
		if !strings.Contains(label, paymentMarker) {
			label = lessonDoneLabel
		}
		history.Lessons = append(history.Lessons, entities.Lesson{
			Date:  date,
			Label: label,
			Text:  timeutil.FormatRussian(date) + " " + label,
		})
		remaining--
	}
	history.IsMore = remaining == 0
	return history, nil
}

// Balance reads the remaining lesson count without the cache. Formula
// errors and non-numeric cells report a loading status.
func (s *HistoryService) Balance(ctx context.Context, student *entities.Student) *entities.Balance {
	sheet, err := s.source.StudentSheet(ctx, student.SheetName, false)
	if err != nil {
		s.log.Warn("Failed to read balance",
			"worksheet", student.SheetName,
			"error", err)
		return &entities.Balance{Status: entities.BalanceError, Message: err.Error()}
	}

	if len(sheet.Balance) == 0 || len(sheet.Balance[0]) == 0 {
		return &entities.Balance{Status: entities.BalanceError, Message: "balance cell is empty"}
	}
	value := strings.TrimSpace(sheet.Balance[0][0])

	if strings.HasPrefix(value, "#") {
		return &entities.Balance{Status: entities.BalanceLoading, RawValue: value}
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return &entities.Balance{Status: entities.BalanceLoading, RawValue: value}
	}
	return &entities.Balance{Status: entities.BalanceOK, Balance: &n}
}

