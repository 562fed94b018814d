package deck

// Rank characters in ascending order, matching the codes the hand
// evaluator accepts.
const ranks = "23456789TJQKA"

// Suit characters: spades, hearts, diamonds, clubs.
const suits = "shdc"

// Card is an opaque card identifier plus the display metadata clients use
// to render it. Code is rank-then-suit, e.g. "As" or "Td". Image is not
// interpreted by the server.
type Card struct {
	Code  string `json:"card"`
	Image string `json:"image"`
}

// Codes returns the full 52-card identifier set in a fixed order.
func Codes() []string {
	codes := make([]string, 0, 52)
	for _, s := range suits {
		for _, r := range ranks {
			codes = append(codes, string(r)+string(s))
		}
	}
	return codes
}
