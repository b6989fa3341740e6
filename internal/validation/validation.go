package validation

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

const (
	MaxUploadSize = 200 << 20 // 200mb
)

var AllowedAudioMimeTypes = map[string]bool{
	"audio/wav":    true,
	"audio/x-wav":  true,
	"audio/wave":   true,
	"audio/mpeg":   true,
	"audio/mp4":    true,
	"audio/x-m4a":  true,
	"audio/flac":   true,
	"audio/x-flac": true,
	"audio/aiff":   true,
	"audio/x-aiff": true,
}

var AllowedAudioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".aiff": true,
	".aif":  true,
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidateMixUpload checks an uploaded audio file before it hits
// storage. sniffedType is the content type detected from the file bytes
// (not the client-declared header).
func ValidateMixUpload(file *multipart.FileHeader, sniffedType string) ValidationErrors {
	var errors ValidationErrors

	if file == nil {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: "an audio file must be provided",
		})
		return errors
	}

	if file.Size == 0 {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file %s is empty", file.Filename),
		})
		return errors
	}

	if file.Size > MaxUploadSize {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file %s exceeds maximum size of %d bytes", file.Filename, MaxUploadSize),
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !AllowedAudioExtensions[ext] {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported file type: %s", ext),
		})
	}

	// sniffed types carry parameters sometimes, e.g. "audio/mpeg; p=1"
	base := sniffedType
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if base != "" && !AllowedAudioMimeTypes[base] {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file %s has unsupported content type: %s", file.Filename, base),
		})
	}

	return errors
}
