package users

import (
	"fmt"

	"demandline/internal/config"
	"demandline/internal/domain"
)

// Directory is the static roster of a session. Exactly one user is the leader.
type Directory struct {
	users  []domain.User
	index  map[domain.UserID]int
	leader domain.UserID
}

func New(entries []domain.User, leader domain.UserID) (Directory, error) {
	d := Directory{index: make(map[domain.UserID]int, len(entries)), leader: leader}
	for _, u := range entries {
		if u.ID == "" {
			return Directory{}, fmt.Errorf("user id required")
		}
		if _, dup := d.index[u.ID]; dup {
			return Directory{}, fmt.Errorf("user %s listed twice", u.ID)
		}
		u.Leader = u.ID == leader
		d.index[u.ID] = len(d.users)
		d.users = append(d.users, u)
	}
	if _, ok := d.index[leader]; !ok {
		return Directory{}, fmt.Errorf("leader %s: %w", leader, domain.ErrUnknownUser)
	}
	return d, nil
}

// FromConfig builds the directory declared in demandline.yml.
func FromConfig(cfg *config.Config) (Directory, error) {
	entries := make([]domain.User, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		entries = append(entries, domain.User{ID: domain.UserID(u.ID), Name: u.Name})
	}
	return New(entries, domain.UserID(cfg.Leader))
}

// Lookup fails with domain.ErrUnknownUser for ids outside the roster.
func (d Directory) Lookup(id domain.UserID) (domain.User, error) {
	i, ok := d.index[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %q: %w", id, domain.ErrUnknownUser)
	}
	return d.users[i], nil
}

func (d Directory) Name(id domain.UserID) (string, error) {
	u, err := d.Lookup(id)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

func (d Directory) Known(id domain.UserID) bool {
	_, ok := d.index[id]
	return ok
}

func (d Directory) Leader() domain.UserID { return d.leader }

func (d Directory) IsLeader(id domain.UserID) bool { return id == d.leader }

// All returns the roster in declaration order.
func (d Directory) All() []domain.User {
	out := make([]domain.User, len(d.users))
	copy(out, d.users)
	return out
}
