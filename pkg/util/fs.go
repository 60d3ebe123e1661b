package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pingcap/errors"
)

// AtomicWrite writes content to path through a temporary file and a rename,
// so readers never observe a half-written file.
func AtomicWrite(path string, content []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return errors.Trace(err)
	}
	tmpName := tmpFile.Name()
	if _, err = tmpFile.Write(content); err != nil {
		tmpFile.Close()
		os.Remove(tmpName)
		return errors.Trace(err)
	}
	if err = tmpFile.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(tmpName, path))
}

// EscapePath encodes special characters in a string to make it safe for use
// as a file system path component.
func EscapePath(input string) string {
	if input == "" {
		return "empty-string"
	}
	var builder strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) && r != '/' && r != '\\' && r != ':' &&
			r != '*' && r != '?' && r != '"' && r != '<' && r != '>' &&
			r != '|' && r != '.' {
			// keep printable and safe characters as-is
			builder.WriteRune(r)
		} else {
			// encode all other characters as %XX (hexadecimal representation)
			builder.WriteString(fmt.Sprintf("%%%02X", r))
		}
	}
	return builder.String()
}
