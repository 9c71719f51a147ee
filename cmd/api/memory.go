package main

import (
	"context"
	"log"
	"os"
	"strings"

	"drouple.org/internal/auth"
	"drouple.org/internal/authz"
	"drouple.org/internal/ids"
)

// memoryDirectory is the dev-mode stand-in for Postgres. It can bootstrap
// a single super admin from DROUPLE_DEV_ADMIN_EMAIL and
// DROUPLE_DEV_ADMIN_PASSWORD so a fresh process is usable at all.
type memoryDirectory struct {
	users   map[string]*auth.User
	tenants []string
}

func newMemoryDirectory() *memoryDirectory {
	d := &memoryDirectory{users: make(map[string]*auth.User)}

	email := strings.TrimSpace(os.Getenv("DROUPLE_DEV_ADMIN_EMAIL"))
	password := os.Getenv("DROUPLE_DEV_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return d
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Printf("dev admin bootstrap failed: %v", err)
		return d
	}
	u := &auth.User{
		ID:           ids.New(),
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Role:         authz.RoleSuperAdmin,
		Status:       auth.UserStatusActive,
	}
	d.users[u.ID] = u
	log.Printf("dev admin %s bootstrapped", u.Email)
	return d
}

func (d *memoryDirectory) FindByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	for _, u := range d.users {
		if u.Email == identifier {
			dup := *u
			return &dup, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (d *memoryDirectory) FindByID(_ context.Context, id string) (*auth.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	dup := *u
	return &dup, nil
}

func (d *memoryDirectory) ListAllTenantIDs(context.Context) ([]string, error) {
	return append([]string(nil), d.tenants...), nil
}
