package entities

import (
	"time"

	"story-video-worker/constant"
)

// Job is the durable record tracked through the whole pipeline. The JSON
// layout is the wire format stored under job:{id}.
type Job struct {
	ID         string             `json:"job_id"`
	Story      string             `json:"story"`
	Duration   int                `json:"duration"`
	Resolution string             `json:"resolution"`
	TikTok     bool               `json:"tiktok"`
	Status     constant.JobStatus `json:"status"`
	Progress   int                `json:"progress"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Error      string             `json:"error,omitempty"`
}

// Frame returns the output dimensions for the job's resolution tier,
// rotated to portrait when short-form output was requested.
func (j *Job) Frame() constant.Dimensions {
	dims, ok := constant.Resolutions[j.Resolution]
	if !ok {
		dims = constant.Resolutions["Full HD"]
	}
	if j.TikTok {
		return dims.Portrait()
	}
	return dims
}
