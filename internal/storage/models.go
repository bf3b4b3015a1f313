// internal/storage/models.go
package storage

// Traffic is the byte count moved through remote hosts on one UTC day.
type Traffic struct {
	Day        string `json:"day"`
	Uploaded   int64  `json:"uploaded"`
	Downloaded int64  `json:"downloaded"`
}

// Transfer status values.
const (
	TransferRunning  = "running"
	TransferDone     = "done"
	TransferFailed   = "failed"
	TransferCanceled = "canceled"
)

// Transfer records one upload task from start to finish.
type Transfer struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Status     string `json:"status"`
	ShareCode  string `json:"share_code,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
}
