package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@db:5432/kyc?sslmode=disable", "pgx5://u:p@db:5432/kyc?sslmode=disable"},
		{"postgresql://u@db/kyc", "pgx5://u@db/kyc"},
		{"pgx5://u@db/kyc", "pgx5://u@db/kyc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, migrateURL(tt.in), tt.in)
	}
}
