package export

import (
	"slices"
	"time"
)

// Phase is what a running job is doing right now.
type Phase string

const (
	PhaseFetching Phase = "fetching"
	PhaseWaiting  Phase = "waiting"
)

// FolderResult is the outcome of exporting one folder.
type FolderResult struct {
	FolderID   string        `json:"folder_id"`
	FolderName string        `json:"folder_name"`
	Success    bool          `json:"success"`
	Tweets     []TweetRecord `json:"tweets,omitempty"`
	Error      string        `json:"error,omitempty"`
	Pages      int           `json:"pages"`
}

// Job is the state of the single export job slot.
type Job struct {
	ID               string         `json:"id"`
	Running          bool           `json:"running"`
	TotalFolders     int            `json:"total_folders"`
	CompletedFolders int            `json:"completed_folders"`
	CurrentFolder    *string        `json:"current_folder"`
	CurrentPages     int            `json:"current_pages"`
	CurrentTweets    int            `json:"current_tweets"`
	Phase            Phase          `json:"phase"`
	Results          []FolderResult `json:"results"`
	Error            string         `json:"error,omitempty"`
	Cancelled        bool           `json:"cancelled"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       *time.Time     `json:"finished_at,omitempty"`
	OutputPaths      []string       `json:"output_paths,omitempty"`
}

// TweetCount returns the number of posts across all results.
func (j *Job) TweetCount() int {
	n := 0
	for _, r := range j.Results {
		n += len(r.Tweets)
	}
	return n
}

// clone copies the job so callers can read it without holding the lock.
// Tweet slices are shared: records are immutable and a result's slice is
// never appended to after it is published.
func (j *Job) clone() *Job {
	c := *j
	c.Results = slices.Clone(j.Results)
	c.OutputPaths = slices.Clone(j.OutputPaths)
	if j.CurrentFolder != nil {
		name := *j.CurrentFolder
		c.CurrentFolder = &name
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
