package cards

import (
	"errors"
	"fmt"
	"strconv"
)

// Reserved story arc tags
const (
	ArcRandom  = "Random"
	ArcPowerup = "Powerup"
)

// ResponseType names one of the response tiers a card offers
type ResponseType string

const (
	ResponseIgnore  ResponseType = "ignore"
	ResponseBasic   ResponseType = "basic"
	ResponseMaximum ResponseType = "maximum"
	ResponseAccept  ResponseType = "accept"
)

// ErrInvalidCard is returned when card data breaks the catalog schema
var ErrInvalidCard = errors.New("invalid card")

// ParseResponseType converts a wire value into a ResponseType
func ParseResponseType(s string) (ResponseType, error) {
	switch rt := ResponseType(s); rt {
	case ResponseIgnore, ResponseBasic, ResponseMaximum, ResponseAccept:
		return rt, nil
	}
	return "", fmt.Errorf("unknown response type %q", s)
}

// Response holds the effects of one response tier
type Response struct {
	Readiness int    `json:"readiness" yaml:"readiness"`
	Capacity  int    `json:"capacity" yaml:"capacity"`
	Score     int    `json:"score" yaml:"score"`
	Outcome   string `json:"outcome" yaml:"outcome"`
}

// Responses maps each offered tier to its effects
type Responses map[ResponseType]Response

// Card is a single dispatch scenario
type Card struct {
	ID           int       `json:"id" yaml:"id"`
	Headline     string    `json:"headline,omitempty" yaml:"headline,omitempty"`
	Text         string    `json:"text,omitempty" yaml:"text,omitempty"`
	StoryArc     string    `json:"storyArc" yaml:"storyArc"`
	ArcNumber    string    `json:"arcNumber,omitempty" yaml:"arcNumber,omitempty"`
	IsPowerup    bool      `json:"isPowerup,omitempty" yaml:"isPowerup,omitempty"`
	PowerupValue int       `json:"powerupValue,omitempty" yaml:"powerupValue,omitempty"`
	Responses    Responses `json:"responses" yaml:"responses"`
}

// InArc reports whether the card belongs to a named story arc
func (c *Card) InArc() bool {
	return !c.IsPowerup && c.StoryArc != ArcRandom && c.StoryArc != ArcPowerup && c.StoryArc != ""
}

// ArcOrder returns the leading integer of ArcNumber, or 0 when it has none
func (c *Card) ArcOrder() int {
	end := 0
	for end < len(c.ArcNumber) && c.ArcNumber[end] >= '0' && c.ArcNumber[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(c.ArcNumber[:end])
	if err != nil {
		return 0
	}
	return n
}

// Offers reports whether the card exposes the given response
func (c *Card) Offers(rt ResponseType) bool {
	if c.IsPowerup {
		return rt == ResponseAccept
	}
	return rt == ResponseIgnore || rt == ResponseBasic || rt == ResponseMaximum
}

// Validate checks the card against the catalog schema
func (c *Card) Validate() error {
	if c.IsPowerup {
		if _, ok := c.Responses[ResponseAccept]; !ok {
			return fmt.Errorf("%w: powerup card %d has no accept response", ErrInvalidCard, c.ID)
		}
		if len(c.Responses) != 1 {
			return fmt.Errorf("%w: powerup card %d must only offer accept", ErrInvalidCard, c.ID)
		}
		return nil
	}

	for _, rt := range []ResponseType{ResponseIgnore, ResponseBasic, ResponseMaximum} {
		if _, ok := c.Responses[rt]; !ok {
			return fmt.Errorf("%w: card %d is missing the %s response", ErrInvalidCard, c.ID, rt)
		}
	}
	if _, ok := c.Responses[ResponseAccept]; ok {
		return fmt.Errorf("%w: card %d is not a powerup but offers accept", ErrInvalidCard, c.ID)
	}

	ignore := c.Responses[ResponseIgnore]
	basic := c.Responses[ResponseBasic]
	maximum := c.Responses[ResponseMaximum]
	if ignore.Readiness < 0 {
		return fmt.Errorf("%w: card %d ignore costs readiness", ErrInvalidCard, c.ID)
	}
	if basic.Readiness > 0 || maximum.Readiness > 0 {
		return fmt.Errorf("%w: card %d basic/maximum must not grant readiness", ErrInvalidCard, c.ID)
	}
	if maximum.Readiness > basic.Readiness {
		return fmt.Errorf("%w: card %d maximum is cheaper than basic", ErrInvalidCard, c.ID)
	}
	return nil
}
