package hilink

import "sync/atomic"

// Token is a verification token from one handshake. It can be spent exactly once.
type Token struct {
	value string
	spent atomic.Bool
}

func newToken(value string) *Token {
	return &Token{value: value}
}

// Use returns the token value and marks it spent
func (t *Token) Use() (string, error) {
	if t == nil || t.spent.Swap(true) {
		return "", ErrTokenSpent
	}
	return t.value, nil
}

// Spent reports whether Use has been called
func (t *Token) Spent() bool {
	return t != nil && t.spent.Load()
}

// Handshake is the result of an unauthenticated SesTokInfo call
type Handshake struct {
	Token   *Token
	Session string
}
