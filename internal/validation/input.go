package validation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
)

// MaxDeckSize bounds client-requested deck sizes
const MaxDeckSize = 500

// ValidateSessionID validates session ID format
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("session ID must be a UUID")
	}
	return nil
}

// ValidateResponseType validates a player response for a dispatch card
func ValidateResponseType(s string) (cards.ResponseType, error) {
	rt, err := cards.ParseResponseType(s)
	if err != nil {
		return "", err
	}
	if rt == cards.ResponseAccept {
		return "", fmt.Errorf("accept is only valid for powerups")
	}
	return rt, nil
}

// ValidateDeckSize validates a requested deck size; 0 means the configured default
func ValidateDeckSize(n int) error {
	if n < 0 || n > MaxDeckSize {
		return fmt.Errorf("deck size must be between 0 and %d", MaxDeckSize)
	}
	return nil
}

// ValidateLimit validates a list limit
func ValidateLimit(n int) error {
	if n < 1 || n > 100 {
		return fmt.Errorf("limit must be between 1 and 100")
	}
	return nil
}
