package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSigningKeyRepository(t *testing.T) {
	db := &Connection{}
	repo := NewSigningKeyRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestNewRefreshTokenRepository(t *testing.T) {
	db := &Connection{}
	repo := NewRefreshTokenRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestNewDenylistRepository(t *testing.T) {
	db := &Connection{}
	repo := NewDenylistRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestNewUserRepository(t *testing.T) {
	db := &Connection{}
	repo := NewUserRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestNewCredentialRepository(t *testing.T) {
	db := &Connection{}
	repo := NewCredentialRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}
