package uploads

import "time"

// ScanImage is the metadata row for one uploaded scan file.
type ScanImage struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	MimeType    string    `json:"mimeType"`
	StoragePath string    `json:"storagePath"`
	CreatedAt   time.Time `json:"createdAt"`
}
