// Package pathcodec maps working directories to the directory names the
// assistant CLIs use for their on-disk session stores, and back.
package pathcodec

import (
	"os"
	"path/filepath"
	"strings"
)

// claudeReplacer covers every character Claude Code flattens to a dash.
var claudeReplacer = strings.NewReplacer(
	"/", "-",
	`\`, "-",
	":", "-",
	".", "-",
	"_", "-",
)

// EncodeClaude converts a working directory into Claude's project directory
// name, e.g. "/Users/josh/code/my_app" -> "-Users-josh-code-my-app".
func EncodeClaude(path string) string {
	return claudeReplacer.Replace(strings.TrimSuffix(path, "/"))
}

// DecodeClaude reverses EncodeClaude naively: every dash becomes a slash.
// Names without a leading dash are returned unchanged.
func DecodeClaude(encoded string) string {
	if !strings.HasPrefix(encoded, "-") {
		return encoded
	}
	return "/" + strings.ReplaceAll(strings.TrimLeft(encoded, "-"), "-", "/")
}

// SmartDecodeClaude recovers the project path and display name from an
// encoded directory name by probing the filesystem. Dashes that were
// originally part of a directory name cannot be told apart from separators,
// so the longest existing prefix is taken as the parent and the remaining
// segments are re-joined with dashes.
func SmartDecodeClaude(encoded string) (path, name string) {
	return smartDecode(encoded, dirExists)
}

// smartDecode is SmartDecodeClaude with an injectable existence check.
func smartDecode(encoded string, exists func(string) bool) (path, name string) {
	if !strings.HasPrefix(encoded, "-") {
		return encoded, encoded
	}

	trimmed := strings.TrimLeft(encoded, "-")
	segments := strings.Split(trimmed, "-")

	validPath := ""
	validIdx := 0
	current := ""
	for i, seg := range segments {
		current += "/" + seg
		if exists(current) {
			validPath = current
			validIdx = i + 1
		}
	}

	switch {
	case validPath != "" && validIdx < len(segments):
		rest := strings.Join(segments[validIdx:], "-")
		return validPath + "/" + rest, rest
	case validPath != "":
		return validPath, segments[len(segments)-1]
	default:
		naive := DecodeClaude(encoded)
		return naive, filepath.Base(naive)
	}
}

func dirExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
