package database

import (
	"context"

	"chatcord/internal/models"
)

type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
}

type Database interface {
	UserRepository
	Close() error
}
