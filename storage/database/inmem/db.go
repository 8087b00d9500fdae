// Package inmemdb keeps users in memory. Used by the service tests.
package inmemdb

import (
	"sync"

	"github.com/trezcool/sciencegpt/core/user"
)

type (
	DB struct {
		user *userTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
	}
}
