package http

import (
	"time"

	"github.com/example/clubsite/internal/application"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	IsAdmin     bool   `json:"is_admin"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toUserResponse(user application.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

type siteRequest struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	Capacity           int    `json:"capacity"`
	MinDurationMinutes int    `json:"min_duration_minutes"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
}

type sitePatchRequest struct {
	Name               *string `json:"name"`
	Description        *string `json:"description"`
	Capacity           *int    `json:"capacity"`
	MinDurationMinutes *int    `json:"min_duration_minutes"`
	MaxDurationMinutes *int    `json:"max_duration_minutes"`
}

type siteResponse struct {
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	Description        string                `json:"description"`
	Capacity           int                   `json:"capacity"`
	MinDurationMinutes int                   `json:"min_duration_minutes"`
	MaxDurationMinutes int                   `json:"max_duration_minutes"`
	Version            int64                 `json:"version"`
	Appointments       []appointmentResponse `json:"appointments"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func toSiteResponse(site application.Site) siteResponse {
	return siteResponse{
		ID:                 site.ID,
		Name:               site.Name,
		Description:        site.Description,
		Capacity:           site.Capacity,
		MinDurationMinutes: site.MinDurationMinutes,
		MaxDurationMinutes: site.MaxDurationMinutes,
		Version:            site.Version,
		Appointments:       toAppointmentResponses(site.Appointments),
		CreatedAt:          site.CreatedAt,
		UpdatedAt:          site.UpdatedAt,
	}
}

type appointmentRequest struct {
	TeamID string    `json:"team_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`

	// Admin-only duration bound overrides for a single proposal.
	MinDurationMinutes *int `json:"min_duration_minutes,omitempty"`
	MaxDurationMinutes *int `json:"max_duration_minutes,omitempty"`
}

type appointmentResponse struct {
	SiteID string    `json:"site_id"`
	TeamID string    `json:"team_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

func toAppointmentResponse(appointment application.Appointment) appointmentResponse {
	return appointmentResponse{
		SiteID: appointment.SiteID,
		TeamID: appointment.TeamID,
		Start:  appointment.Start,
		End:    appointment.End,
	}
}

func toAppointmentResponses(appointments []application.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appointments))
	for _, appointment := range appointments {
		out = append(out, toAppointmentResponse(appointment))
	}
	return out
}

type reviseAppointmentsRequest struct {
	Appointments []appointmentRequest `json:"appointments"`
}

type utilizationResponse struct {
	SiteID     string    `json:"site_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Capacity   int       `json:"capacity"`
	MaxOverlap int       `json:"max_overlap"`
}

type teamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type joinTeamRequest struct {
	InviteCode string `json:"invite_code"`
}

type teamResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CaptainID   string    `json:"captain_id"`
	Members     []string  `json:"members"`
	InviteCode  string    `json:"invite_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTeamResponse(team application.Team) teamResponse {
	return teamResponse{
		ID:          team.ID,
		Name:        team.Name,
		Description: team.Description,
		CaptainID:   team.CaptainID,
		Members:     team.Members,
		InviteCode:  team.InviteCode,
		CreatedAt:   team.CreatedAt,
		UpdatedAt:   team.UpdatedAt,
	}
}
