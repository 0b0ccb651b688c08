package entities

// SceneAsset is the per-scene result of a best-effort generation stage.
// An empty Path marks a degraded scene: generation failed but the job goes on.
type SceneAsset struct {
	SceneNumber int
	Path        string
	Duration    float64
	SkipReason  string
}

func (a SceneAsset) Produced() bool {
	return a.Path != ""
}

func ProducedAsset(sceneNumber int, path string, duration float64) SceneAsset {
	return SceneAsset{SceneNumber: sceneNumber, Path: path, Duration: duration}
}

func SkippedAsset(sceneNumber int, reason string) SceneAsset {
	return SceneAsset{SceneNumber: sceneNumber, SkipReason: reason}
}
