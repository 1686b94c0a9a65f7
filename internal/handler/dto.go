package handler

import (
	"time"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/service"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	CreatedAt   string `json:"createdAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}

func toUserDTOs(users []domain.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i := range users {
		dtos[i] = toUserDTO(&users[i])
	}
	return dtos
}

// WearLogDTO is the JSON representation of a wear log.
type WearLogDTO struct {
	ID      string  `json:"id"`
	UserID  int64   `json:"userId"`
	StartAt string  `json:"startAt"`
	EndAt   *string `json:"endAt"`
	Status  string  `json:"status"`
	Reason  string  `json:"reason,omitempty"`
	Origin  string  `json:"origin"`
}

func toWearLogDTO(l *domain.WearLog) WearLogDTO {
	dto := WearLogDTO{
		ID:      l.ID,
		UserID:  l.UserID,
		StartAt: l.StartAt.Format(time.RFC3339Nano),
		Status:  l.Status,
		Reason:  l.Reason,
		Origin:  l.Origin,
	}
	if l.EndAt != nil {
		t := l.EndAt.Format(time.RFC3339Nano)
		dto.EndAt = &t
	}
	return dto
}

func toWearLogDTOs(logs []domain.WearLog) []WearLogDTO {
	dtos := make([]WearLogDTO, len(logs))
	for i := range logs {
		dtos[i] = toWearLogDTO(&logs[i])
	}
	return dtos
}

// DayTotalDTO is one bucket of a weekly series.
type DayTotalDTO struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}

func toDayTotalDTOs(series []service.DayTotal) []DayTotalDTO {
	dtos := make([]DayTotalDTO, len(series))
	for i, d := range series {
		dtos[i] = DayTotalDTO{Date: d.Date.Format("2006-01-02"), Hours: d.Hours}
	}
	return dtos
}

// CycleStatusDTO is the JSON representation of a user's change-cycle status.
type CycleStatusDTO struct {
	IsActive      bool    `json:"isActive"`
	CycleStart    *string `json:"cycleStart"`
	NextChangeDue *string `json:"nextChangeDue"`
	IsOverdue     bool    `json:"isOverdue"`
	DaysRemaining int     `json:"daysRemaining"`
}

func toCycleStatusDTO(state *domain.CycleState, now time.Time) CycleStatusDTO {
	dto := CycleStatusDTO{IsActive: state.IsActive}
	if state.CycleStart == nil {
		return dto
	}

	start := state.CycleStart.Format(time.RFC3339)
	due := service.NextChangeDue(*state.CycleStart).Format(time.RFC3339)
	dto.CycleStart = &start
	dto.NextChangeDue = &due
	dto.IsOverdue = service.IsOverdue(*state.CycleStart, now)
	dto.DaysRemaining = service.DaysRemaining(*state.CycleStart, now)
	return dto
}

// PatientSummaryDTO is a clinician's view of one patient: the trailing-week
// series and the derived compliance signal. It is computed on demand, never
// persisted.
type PatientSummaryDTO struct {
	ID          int64         `json:"id"`
	DisplayName string        `json:"displayName"`
	Email       string        `json:"email"`
	Compliance  string        `json:"compliance"`
	AvgHours    float64       `json:"avgHours"`
	Week        []DayTotalDTO `json:"week"`
}
