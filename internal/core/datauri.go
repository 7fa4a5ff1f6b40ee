package core

import (
	"encoding/base64"
	"errors"
	"strings"
)

const dataURIBase64Marker = ";base64,"

// ErrInvalidDataURI is returned when a string is not a base64 data URI.
var ErrInvalidDataURI = errors.New("invalid base64 data URI")

// EncodeDataURI renders data as data:<mimeType>;base64,<data>.
func EncodeDataURI(mimeType string, data []byte) string {
	var b strings.Builder
	encoded := base64.StdEncoding.EncodeToString(data)
	b.Grow(len("data:") + len(mimeType) + len(dataURIBase64Marker) + len(encoded))
	b.WriteString("data:")
	b.WriteString(mimeType)
	b.WriteString(dataURIBase64Marker)
	b.WriteString(encoded)
	return b.String()
}

// DecodeDataURI is the inverse of EncodeDataURI.
func DecodeDataURI(uri string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	mimeType, payload, ok := strings.Cut(rest, dataURIBase64Marker)
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.Join(ErrInvalidDataURI, err)
	}
	return mimeType, data, nil
}
