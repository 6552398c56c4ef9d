package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SplitLines splits extracted text on newlines. Empty text yields a single empty line.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

// EncodeLines renders lines as a JSON array of strings.
func EncodeLines(lines []string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(lines); err != nil {
		return nil, fmt.Errorf("failed to encode lines: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// OutputObjectName derives the result object for a source object.
func OutputObjectName(objectName, suffix string) string {
	return objectName + suffix
}

// ScratchName maps an object name to a single safe path element.
func ScratchName(objectName string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(objectName)
	switch name {
	case "", ".", "..":
		return "object"
	}
	return name
}
