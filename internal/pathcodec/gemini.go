package pathcodec

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// geminiNameHashLen is how much of the hash is kept in the fallback name.
const geminiNameHashLen = 12

// HashGeminiPath returns the directory name Gemini CLI uses for a project:
// the lowercase hex SHA-256 of the absolute path.
func HashGeminiPath(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

// geminiBases lists the directories probed when reversing a Gemini hash.
func geminiBases(home string) []string {
	tmp := []string{"/tmp", "/private/tmp"}
	if home == "" {
		return tmp
	}
	return append([]string{
		filepath.Join(home, "Desktop", "Code"),
		filepath.Join(home, "Desktop"),
		filepath.Join(home, "Documents"),
		filepath.Join(home, "Projects"),
		filepath.Join(home, "dev"),
		filepath.Join(home, "src"),
		filepath.Join(home, "code"),
		home,
	}, tmp...)
}

// DecodeGemini tries to find the project path whose hash is the given
// directory name. It checks the common bases first, then their immediate
// subdirectories. When nothing matches it returns the hash itself and a
// shortened display name.
func DecodeGemini(home, hash string) (path, name string) {
	bases := geminiBases(home)

	for _, base := range bases {
		if HashGeminiPath(base) == hash {
			return base, filepath.Base(base)
		}
	}

	for _, base := range bases {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			candidate := filepath.Join(base, entry.Name())
			if HashGeminiPath(candidate) == hash {
				return candidate, entry.Name()
			}
		}
	}

	short := hash
	if len(short) > geminiNameHashLen {
		short = short[:geminiNameHashLen]
	}
	return hash, "Gemini-" + short
}
