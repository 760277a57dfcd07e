package terminal

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/antibyte/minipl/pkg/shared"
	"github.com/google/uuid"
)

// maxInputLine bounds a single line sent for a read statement.
const maxInputLine = 4096

// SecurityValidator checks frames received from terminal clients.
type SecurityValidator struct {
	maxSourceBytes int
}

// NewSecurityValidator creates a validator that rejects programs larger
// than maxSourceBytes. Zero disables the size check.
func NewSecurityValidator(maxSourceBytes int) *SecurityValidator {
	return &SecurityValidator{maxSourceBytes: maxSourceBytes}
}

// ValidateMessage checks type and content of an incoming frame.
func (sv *SecurityValidator) ValidateMessage(msg shared.Message) error {
	switch msg.Type {
	case shared.MessageTypeRun:
		return sv.validateSource(msg.Content)
	case shared.MessageTypeInput:
		return sv.validateInput(msg.Content)
	case shared.MessageTypeStop:
		return nil
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (sv *SecurityValidator) validateSource(source string) error {
	if !utf8.ValidString(source) {
		return fmt.Errorf("program is not valid UTF-8")
	}
	if sv.maxSourceBytes > 0 && len(source) > sv.maxSourceBytes {
		return fmt.Errorf("program too large: maximum %d bytes allowed", sv.maxSourceBytes)
	}
	return nil
}

// validateInput allows printable text and tabs only. Line breaks are added
// by the session.
func (sv *SecurityValidator) validateInput(line string) error {
	if len(line) > maxInputLine {
		return fmt.Errorf("input too long: maximum %d bytes allowed", maxInputLine)
	}
	if !utf8.ValidString(line) {
		return fmt.Errorf("input is not valid UTF-8")
	}
	for _, r := range line {
		if r != '\t' && unicode.IsControl(r) {
			return fmt.Errorf("input contains control character %U", r)
		}
	}
	return nil
}

// ValidateSessionID checks that id is a UUID as issued by the server.
func (sv *SecurityValidator) ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("empty session ID")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session ID format: %w", err)
	}
	return nil
}
