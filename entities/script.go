package entities

// Script is the ordered scene sequence produced once per job by the script
// stage and consumed read-only afterwards.
type Script struct {
	Title  string  `json:"title"`
	Scenes []Scene `json:"scenes"`
}

type Scene struct {
	SceneNumber      int     `json:"scene_number"`
	Duration         float64 `json:"duration"`
	Narration        string  `json:"narration"`
	ImageDescription string  `json:"image_description"`
	TimingStart      float64 `json:"timing_start"`
	TimingEnd        float64 `json:"timing_end"`
}

// Normalize renumbers scenes 1..N and recomputes timing offsets so they are
// contiguous, non-overlapping, and end-start equals duration. Model output
// does not always honor those invariants.
func (s *Script) Normalize() {
	offset := 0.0
	for i := range s.Scenes {
		scene := &s.Scenes[i]
		scene.SceneNumber = i + 1
		if scene.Duration <= 0 {
			scene.Duration = scene.TimingEnd - scene.TimingStart
		}
		if scene.Duration <= 0 {
			scene.Duration = 30
		}
		scene.TimingStart = offset
		scene.TimingEnd = offset + scene.Duration
		offset = scene.TimingEnd
	}
}
