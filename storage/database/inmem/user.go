package inmemdb

import (
	"context"

	"github.com/youpass/youpass/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// checkUniqueness must be called with the lock held.
func (repo *userRepository) checkUniqueness(usr user.User) error {
	for _, u := range repo.db.users {
		if u.ID == usr.ID {
			continue
		}
		if u.Email == usr.Email {
			return user.ErrEmailExists
		}
		if usr.GoogleID != "" && u.GoogleID == usr.GoogleID {
			return user.ErrGoogleIDExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUniqueness(usr); err != nil {
		return user.User{}, err
	}
	stored := cloneUser(usr)
	repo.db.users[usr.ID] = &stored
	return cloneUser(stored), nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID == "" && filter.Email == "" && filter.GoogleID == "" {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		if (filter.ID == "" || u.ID == filter.ID) &&
			(filter.Email == "" || u.Email == filter.Email) &&
			(filter.GoogleID == "" || u.GoogleID == filter.GoogleID) {
			return cloneUser(*u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsersByID(_ context.Context, ids ...string) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := repo.db.users[id]; ok {
			users = append(users, cloneUser(*u))
		}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr); err != nil {
		return user.User{}, err
	}

	// enrollments belong to the course repository
	updated := cloneUser(usr)
	updated.EnrolledCourses = orig.EnrolledCourses
	updated.CompletedLessons = orig.CompletedLessons
	updated.CreatedAt = orig.CreatedAt
	repo.db.users[usr.ID] = &updated
	return cloneUser(updated), nil
}

func (repo *userRepository) CountUsers(_ context.Context) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.users), nil
}
