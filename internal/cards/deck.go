package cards

// Deck is the remaining play sequence; the front card is the current one
type Deck struct {
	cards []Card
}

// NewDeck creates a deck that plays cards in the given order
func NewDeck(order []Card) *Deck {
	cards := make([]Card, len(order))
	copy(cards, order)
	return &Deck{cards: cards}
}

// Current returns the card being played, or nil if the deck is empty
func (d *Deck) Current() *Card {
	if len(d.cards) == 0 {
		return nil
	}
	card := d.cards[0]
	return &card
}

// Remove drops the current card permanently
func (d *Deck) Remove() {
	if len(d.cards) == 0 {
		return
	}
	d.cards = d.cards[1:]
}

// Recycle moves the current card to the end of the sequence
func (d *Deck) Recycle() {
	if len(d.cards) < 2 {
		return
	}
	card := d.cards[0]
	d.cards = append(d.cards[1:], card)
}

// Apply performs a resolver deck action on the current card
func (d *Deck) Apply(action DeckAction) {
	if action == DeckRecycle {
		d.Recycle()
		return
	}
	d.Remove()
}

// Size returns the number of cards left
func (d *Deck) Size() int {
	return len(d.cards)
}

// IsEmpty reports whether no cards are left
func (d *Deck) IsEmpty() bool {
	return len(d.cards) == 0
}

// IDs returns the ids of the remaining sequence in play order
func (d *Deck) IDs() []int {
	ids := make([]int, len(d.cards))
	for i, card := range d.cards {
		ids[i] = card.ID
	}
	return ids
}
