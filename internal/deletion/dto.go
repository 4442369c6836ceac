// AngelaMos | 2026
// dto.go

package deletion

import (
	"time"
)

type RequestDeletionRequest struct {
	Reason          string `json:"reason"            validate:"max=500"`
	GracePeriodDays int    `json:"grace_period_days" validate:"omitempty,min=1,max=365"`
}

// StatusResponse is what the account owner sees. Failure detail is kept
// for operators.
type StatusResponse struct {
	State       State      `json:"state"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Message     string     `json:"message,omitempty"`
}

func ToStatusResponse(a *Account) StatusResponse {
	resp := StatusResponse{State: a.State()}

	switch resp.State {
	case StatePending:
		resp.RequestedAt = a.RequestedAt
		resp.ScheduledAt = a.ScheduledAt
		if a.PurgeStarted() {
			resp.Message = "deletion is in progress"
		}
	case StateFailed:
		resp.RequestedAt = a.RequestedAt
		resp.Message = "deletion could not be completed; please contact support"
	}

	return resp
}

type ScheduledResponse struct {
	State       State     `json:"state"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// OperatorView includes internal failure detail and is only served on
// admin routes.
type OperatorView struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	State          State      `json:"state"`
	RequestedAt    *time.Time `json:"requested_at,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Reason         *string    `json:"reason,omitempty"`
	PurgeStartedAt *time.Time `json:"purge_started_at,omitempty"`
	FailedAt       *time.Time `json:"failed_at,omitempty"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
}

func ToOperatorView(a *Account) OperatorView {
	return OperatorView{
		ID:             a.ID.String(),
		Email:          a.Email,
		State:          a.State(),
		RequestedAt:    a.RequestedAt,
		ScheduledAt:    a.ScheduledAt,
		Reason:         a.Reason,
		PurgeStartedAt: a.PurgeStartedAt,
		FailedAt:       a.FailedAt,
		FailureReason:  a.FailureReason,
	}
}

func ToOperatorViews(accounts []Account) []OperatorView {
	views := make([]OperatorView, len(accounts))
	for i := range accounts {
		views[i] = ToOperatorView(&accounts[i])
	}
	return views
}
