package constant

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition out of the status is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type Stage string

const (
	StageScript      Stage = "script_generation"
	StageImages      Stage = "image_generation"
	StageVoice       Stage = "voice_generation"
	StageComposition Stage = "media_composition"
	StageUpload      Stage = "upload"
)

// Checkpoint pairs a stage with the progress value persisted once the stage
// completes. The executor consults this table instead of hard-coding weights,
// so reordering stages stays a one-line change.
type Checkpoint struct {
	Stage    Stage
	Progress int
}

var Checkpoints = []Checkpoint{
	{StageScript, 20},
	{StageImages, 40},
	{StageVoice, 60},
	{StageComposition, 80},
	{StageUpload, 100},
}

// Intermediate progress marks that are not stage completions.
const (
	ProgressStarted      = 10
	ProgressConcatenated = 90
)

func CheckpointFor(stage Stage) int {
	for _, c := range Checkpoints {
		if c.Stage == stage {
			return c.Progress
		}
	}
	return 0
}

// JobTTL bounds storage growth; records vanish one hour after their last write
// regardless of terminal state.
const JobTTL = time.Hour

const (
	DurationMinMinutes = 10
	DurationMaxMinutes = 25
)

type Dimensions struct {
	Width  int
	Height int
}

var Resolutions = map[string]Dimensions{
	"HD":      {1280, 720},
	"Full HD": {1920, 1080},
	"4K":      {3840, 2160},
}

// Portrait swaps to the 9:16 frame used for short-form output.
func (d Dimensions) Portrait() Dimensions {
	return Dimensions{Width: d.Height, Height: d.Width}
}

var Stories = []string{
	"Adam and Eve", "Noah's Ark", "Abraham and Isaac", "Moses and the Exodus",
	"David and Goliath", "Jonah and the Whale", "Daniel in the Lion's Den",
	"Jesus' Birth", "Jesus' Baptism", "The Good Samaritan", "Jesus Feeds 5000",
	"Jesus Walks on Water", "The Resurrection", "Paul's Conversion",
}

func ValidStory(story string) bool {
	for _, s := range Stories {
		if s == story {
			return true
		}
	}
	return false
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
