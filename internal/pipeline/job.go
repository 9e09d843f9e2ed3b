// Package pipeline runs layout detection and text recognition over a video's scene images on two
// background workers.
package pipeline

// Job is a unit of work for a worker. The set of jobs is closed.
type Job interface {
	Video() string
	Scene() int
	isJob()
}

// DetectionJob runs the layout detector on one scene image.
type DetectionJob struct {
	VideoID    string
	SceneIndex int
	ImagePath  string
}

// TesseractJob recognizes the text of every text box detected in one scene.
type TesseractJob struct {
	VideoID    string
	SceneIndex int
	ImagePath  string
}

// FreeformJob recognizes free text lines in one scene and reconciles them with its boxes.
type FreeformJob struct {
	VideoID    string
	SceneIndex int
	ImagePath  string
}

func (j DetectionJob) Video() string { return j.VideoID }
func (j DetectionJob) Scene() int    { return j.SceneIndex }
func (DetectionJob) isJob()          {}

func (j TesseractJob) Video() string { return j.VideoID }
func (j TesseractJob) Scene() int    { return j.SceneIndex }
func (TesseractJob) isJob()          {}

func (j FreeformJob) Video() string { return j.VideoID }
func (j FreeformJob) Scene() int    { return j.SceneIndex }
func (FreeformJob) isJob()          {}
