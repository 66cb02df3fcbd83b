package jwt

// User is the authenticated party a token was issued for. Role is the side
// they act on when they open a new conversation: customer or seller.
type User struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
}
