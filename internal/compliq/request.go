package compliq

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"time"
)

const (
	maxIDLength      = 100
	maxContentLength = 40000

	// TimestampLayout is the wire format for the timestamp field,
	// MM-DD-YYYY HH:MM:SS.
	TimestampLayout = "01-02-2006 15:04:05"
	// ProcessingTimeLayout is the wire format for processingTime.
	ProcessingTimeLayout = "15:04:05"
)

// allowedMediaTypes is the documented set of file content types the
// COMPLiQ attachment endpoints accept.
var allowedMediaTypes = map[string]struct{}{
	"application/json": {},
	"application/msword": {},
	"application/pdf":  {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":   {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/xml": {},
	"application/zip": {},
	"image/gif":       {},
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"text/csv":        {},
	"text/markdown":   {},
	"text/plain":      {},
}

// AllowedMediaTypes returns the accepted file content types in stable
// order, for schema documentation.
func AllowedMediaTypes() []string {
	types := make([]string, 0, len(allowedMediaTypes))
	for mt := range allowedMediaTypes {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// CallParams carries the parameters of a single tool call. Which fields
// are consulted depends on the tool.
type CallParams struct {
	SessionID       string
	CorrelationID   string
	UserID          string
	Timestamp       string
	Content         string
	FileBase64      string
	FileName        string
	FileContentType string
	ResourceName    string
	ProcessingTime  string
}

// Payload is a fully encoded multipart form ready to POST upstream.
type Payload struct {
	Body        []byte
	ContentType string
}

// BuildRequest validates p against the tool's policy and encodes the
// multipart payload. It performs no I/O: a returned error means no
// network call should be made.
func BuildRequest(tool Tool, p CallParams) (*Payload, error) {
	if err := validateCommon(tool, p); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := writeCommon(w, tool, p); err != nil {
		return nil, err
	}

	var err error
	switch tool {
	case ToolInputPrompt:
		err = writeContent(w, p.Content)
	case ToolAddFile:
		err = writeFilePart(w, p)
	case ToolIntermediateResults:
		if werr := w.WriteField("resourceName", p.ResourceName); werr != nil {
			return nil, werr
		}
		err = writeContentOrFile(w, p)
	case ToolProcessingResult:
		if werr := w.WriteField("processingTime", p.ProcessingTime); werr != nil {
			return nil, werr
		}
		err = writeContentOrFile(w, p)
	default:
		err = &ValidationError{Reason: "unknown tool " + string(tool)}
	}
	if err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return &Payload{Body: buf.Bytes(), ContentType: w.FormDataContentType()}, nil
}

// validateCommon checks the fields every tool shares.
func validateCommon(tool Tool, p CallParams) error {
	if err := requireID("sessionId", p.SessionID); err != nil {
		return err
	}
	if err := requireID("correlationId", p.CorrelationID); err != nil {
		return err
	}

	// userId is required on every tool except addFile.
	if tool == ToolAddFile {
		if p.UserID != "" && len(p.UserID) > maxIDLength {
			return &ValidationError{Field: "userId", Reason: fmt.Sprintf("exceeds %d characters", maxIDLength)}
		}
	} else if err := requireID("userId", p.UserID); err != nil {
		return err
	}

	if p.Timestamp == "" {
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	if _, err := time.Parse(TimestampLayout, p.Timestamp); err != nil {
		return &ValidationError{Field: "timestamp", Reason: "must match MM-DD-YYYY HH:MM:SS"}
	}

	switch tool {
	case ToolIntermediateResults:
		if p.ResourceName == "" {
			return &ValidationError{Field: "resourceName", Reason: "is required"}
		}
	case ToolProcessingResult:
		if p.ProcessingTime == "" {
			return &ValidationError{Field: "processingTime", Reason: "is required"}
		}
		if _, err := time.Parse(ProcessingTimeLayout, p.ProcessingTime); err != nil {
			return &ValidationError{Field: "processingTime", Reason: "must match HH:MM:SS"}
		}
	}
	return nil
}

func requireID(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if len(value) > maxIDLength {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("exceeds %d characters", maxIDLength)}
	}
	return nil
}

func writeCommon(w *multipart.Writer, tool Tool, p CallParams) error {
	fields := map[string]string{
		"sessionId":     p.SessionID,
		"correlationId": p.CorrelationID,
		"timestamp":     p.Timestamp,
	}
	if p.UserID != "" {
		fields["userId"] = p.UserID
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return err
		}
	}
	return nil
}

func writeContent(w *multipart.Writer, content string) error {
	if content == "" {
		return &ValidationError{Field: "content", Reason: "is required"}
	}
	if len(content) > maxContentLength {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("exceeds %d characters", maxContentLength)}
	}
	return w.WriteField("content", content)
}

// writeContentOrFile applies the content-or-file union rule: content
// wins when both are supplied; a missing or partial file triple with no
// content fails validation before any decode work.
func writeContentOrFile(w *multipart.Writer, p CallParams) error {
	if p.Content != "" {
		return writeContent(w, p.Content)
	}
	if p.FileBase64 == "" || p.FileName == "" || p.FileContentType == "" {
		return &ValidationError{Reason: "either content or file must be provided"}
	}
	return writeFilePart(w, p)
}

// writeFilePart decodes the base64 attachment and emits it as a file
// part tagged with the declared name and media type.
func writeFilePart(w *multipart.Writer, p CallParams) error {
	if p.FileBase64 == "" {
		return &ValidationError{Field: "fileBase64", Reason: "is required"}
	}
	if p.FileName == "" {
		return &ValidationError{Field: "fileName", Reason: "is required"}
	}
	if p.FileContentType == "" {
		return &ValidationError{Field: "fileContentType", Reason: "is required"}
	}
	if _, ok := allowedMediaTypes[p.FileContentType]; !ok {
		return &ValidationError{Field: "fileContentType", Reason: "unsupported media type " + p.FileContentType}
	}

	data, err := DecodeBase64(p.FileBase64)
	if err != nil {
		return err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, p.FileName))
	header.Set("Content-Type", p.FileContentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}
