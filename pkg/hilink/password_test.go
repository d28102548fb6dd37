package hilink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodePassword(t *testing.T) {
	tests := []struct {
		username, password, token string
		want                      string
	}{
		{"admin", "admin", "abc123", "NjQwZDNlNDI5ZDFiMzg5ZTI0YTM4OGE5ZmI3M2U5ZWJmMWQ3ZmIwMDFhY2E0NzcwNDlhMGJhNTcxYWY5OWEyOA=="},
		{"admin", "password", "TOKEN", "ZmUyY2U0YzM4MmVjYjBiZDYyMTY2Y2RlM2JiMWJjNTY0ZTQ2ZDUxNjJlNDNmYTJmNzRjYmMxYjFmZmJlMzJjYg=="},
		{"admin", "", "x", "NGFiNDk3OWM4ZmE3M2VmNDM4Y2YwZDJkNTgwMmUwNDA5MzE0OWY0ZTEyZTE2ZDNmZDNkYzc3ZmFiYTU2MDRlZg=="},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodePassword(tt.username, tt.password, tt.token), "%s/%s/%s", tt.username, tt.password, tt.token)
	}
}

func TestEncodePasswordDependsOnToken(t *testing.T) {
	a := EncodePassword("admin", "admin", "one")
	assert.Equal(t, a, EncodePassword("admin", "admin", "one"))
	assert.NotEqual(t, a, EncodePassword("admin", "admin", "two"))
	// base64 of a 64 character hex digest
	assert.Len(t, a, 88)
}
