package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Body limits for inbound webhook payloads.
const (
	DefaultMaxBodySize  = 1 << 20 // 1 MiB
	DefaultMaxJSONDepth = 32
)

// Body errors.
var (
	ErrBodyTooLarge = errors.New("request body exceeds maximum size")
	ErrJSONTooDeep  = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON  = errors.New("invalid JSON")
)

// DecodeJSONBody reads at most maxSize bytes from r, rejects documents
// nested deeper than maxDepth, and unmarshals the result into v.
// Non-positive limits select the defaults.
func DecodeJSONBody(r io.Reader, maxSize, maxDepth int, v any) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxJSONDepth
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(maxSize)+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w (max %d bytes)", ErrBodyTooLarge, maxSize)
	}
	if err := checkDepth(data, maxDepth); err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return nil
}

// checkDepth walks the token stream without building values.
func checkDepth(data []byte, limit int) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			if depth++; depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}
