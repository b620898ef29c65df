package types

import "time"

// File describes an uploaded object. The bytes live in object storage under
// Filename; the row only carries metadata.
type File struct {
	ID               string     `json:"id" db:"id"`
	Filename         string     `json:"filename" db:"filename"`
	OriginalFilename string     `json:"original_filename" db:"original_filename"`
	FilePath         string     `json:"file_path" db:"file_path"`
	FileSize         int64      `json:"file_size" db:"file_size"`
	MimeType         string     `json:"mime_type" db:"mime_type"`
	Description      *string    `json:"description" db:"description"`
	UploadedAt       time.Time  `json:"uploaded_at" db:"uploaded_at"`
	UpdatedAt        *time.Time `json:"updated_at" db:"updated_at"`
}
