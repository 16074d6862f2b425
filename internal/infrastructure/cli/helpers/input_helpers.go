package helpers

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/doeshing/phocache/internal/domain"
)

// stdinPath reads the argument from standard input.
const stdinPath = "-"

// ReadImageArgument loads an image for saving. Files holding a data URI or
// base64 text are used as-is; anything else is treated as raw image bytes
// and base64-encoded.
func ReadImageArgument(path string, stdin io.Reader) (string, error) {
	raw, err := readSource(path, stdin)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", path, err)
	}
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		return "", fmt.Errorf("image %s is empty", path)
	}
	if bytes.HasPrefix(text, []byte("data:")) || isBase64Text(text) {
		return string(text), nil
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ReadPayloadArgument accepts inline JSON or "@path" to read it from a file.
func ReadPayloadArgument(arg string, stdin io.Reader) (domain.Payload, error) {
	if !strings.HasPrefix(arg, "@") {
		return domain.Payload(arg), nil
	}
	raw, err := readSource(strings.TrimPrefix(arg, "@"), stdin)
	if err != nil {
		return nil, fmt.Errorf("read result %s: %w", arg, err)
	}
	return domain.Payload(raw), nil
}

func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == stdinPath {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func isBase64Text(text []byte) bool {
	for _, c := range text {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+', c == '/', c == '=', c == '\n', c == '\r':
		default:
			return false
		}
	}
	return true
}
