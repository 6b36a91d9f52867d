package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Operation names. They double as remote-call names on mobile and must match
// the native handler registry exactly.
const (
	OpPing                      = "ping"
	OpDownloadPrivate           = "downloadPrivate"
	OpDownloadPublic            = "downloadPublic"
	OpSaveFilePrivateFromBuffer = "saveFilePrivateFromBuffer"
	OpSaveFilePublicFromBuffer  = "saveFilePublicFromBuffer"
	OpSaveFilePrivateFromPath   = "saveFilePrivateFromPath"
	OpSaveFilePublicFromPath    = "saveFilePublicFromPath"
	OpCopyFilePath              = "copyFilePath"
)

type PingRequest struct {
	Value *string `json:"value,omitempty"`
}

type PingResponse struct {
	Value *string `json:"value,omitempty"`
}

type DownloadPrivateRequest struct {
	URL      string  `json:"url"`
	FileName *string `json:"fileName,omitempty"`
}

type DownloadPublicRequest struct {
	URL      string  `json:"url"`
	FileName *string `json:"fileName,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
}

type SaveFilePrivateFromBufferRequest struct {
	Data     Bytes  `json:"data"`
	FileName string `json:"fileName"`
}

type SaveFilePublicFromBufferRequest struct {
	Data     Bytes   `json:"data"`
	FileName string  `json:"fileName"`
	MimeType *string `json:"mimeType,omitempty"`
}

type SaveFilePrivateFromPathRequest struct {
	SourcePath string  `json:"sourcePath"`
	FileName   *string `json:"fileName,omitempty"`
}

type SaveFilePublicFromPathRequest struct {
	SourcePath string  `json:"sourcePath"`
	FileName   *string `json:"fileName,omitempty"`
	MimeType   *string `json:"mimeType,omitempty"`
}

// DownloadResponse describes where content was stored. Desktop fills Path,
// mobile fills URI.
type DownloadResponse struct {
	FileName string  `json:"fileName"`
	Path     *string `json:"path,omitempty"`
	URI      *string `json:"uri,omitempty"`
}

// Location returns the populated storage locator, Path first.
func (r DownloadResponse) Location() string {
	if r.Path != nil {
		return *r.Path
	}
	if r.URI != nil {
		return *r.URI
	}
	return ""
}

// Bytes is a byte buffer that decodes from either a base64 string or a JSON
// array of byte values, the two shapes web and native callers send.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal([]byte(b))
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		out := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return fmt.Errorf("byte value out of range at index %d: %d", i, v)
			}
			out[i] = byte(v)
		}
		*b = out
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	*b = out
	return nil
}

// String returns a pointer to s, for optional request fields.
func String(s string) *string {
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
