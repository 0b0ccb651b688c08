package dto

import "github.com/google/uuid"

// JobMessage is the task reference pushed onto the queue. It carries the full
// parameter snapshot so a worker never has to read the store before starting.
type JobMessage struct {
	JobId      uuid.UUID `json:"job_id"`
	Story      string    `json:"story"`
	Duration   int       `json:"duration"`
	Resolution string    `json:"resolution"`
	TikTok     bool      `json:"tiktok"`
}

// GenerateRequest uses pointers for scalar fields so a missing field can be
// told apart from a zero value and reported by name.
type GenerateRequest struct {
	Story      *string `json:"story"`
	Duration   *int    `json:"duration"`
	Resolution *string `json:"resolution"`
	TikTok     *bool   `json:"tiktok"`
}

type GenerateResponse struct {
	JobId   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse always carries the error key, null while the job is healthy.
type StatusResponse struct {
	JobId     string  `json:"job_id"`
	Status    string  `json:"status"`
	Progress  int     `json:"progress"`
	CreatedAt string  `json:"created_at"`
	Error     *string `json:"error"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
