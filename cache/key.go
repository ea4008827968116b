package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonwraymond/toolbatch/tool"
)

// Key builds the composite store key "<tool>:<json(args)>".
//
// Maps are serialized with sorted keys, so two argument objects with the
// same content always produce the same key regardless of construction
// order. Nil arguments serialize as "{}". HTML escaping is disabled so
// file paths appear verbatim in keys, which invalidation relies on.
func Key(toolName string, args any) (string, error) {
	if err := ValidateToolName(toolName); err != nil {
		return "", err
	}
	serialized, err := canonicalize(args)
	if err != nil {
		return "", fmt.Errorf("cache: failed to serialize args: %w", err)
	}
	return toolName + ":" + serialized, nil
}

// SplitKey splits a key into tool name and serialized args on the first colon.
func SplitKey(key string) (toolName, serializedArgs string, ok bool) {
	toolName, serializedArgs, ok = strings.Cut(key, ":")
	if !ok || toolName == "" {
		return "", "", false
	}
	return toolName, serializedArgs, true
}

// ValidateToolName checks that a tool name can head a key. Failures wrap
// both ErrInvalidKey and the tool package's reason.
func ValidateToolName(toolName string) error {
	if err := tool.ValidName(toolName); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return nil
}

func canonicalize(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	out := strings.TrimSuffix(buf.String(), "\n")
	if out == "null" {
		return "{}", nil
	}
	return out, nil
}
