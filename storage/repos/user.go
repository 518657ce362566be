package docrepos

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/user"
)

// userDoc is the stored form of a user; the password hash never leaves the repository otherwise.
type userDoc struct {
	user.User
	PasswordHash []byte `json:"passwordHash,omitempty"`
}

type userRepository struct {
	db core.DocStore
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DocStore) user.Repository {
	return &userRepository{db: db}
}

func decodeUser(doc core.Document) (user.User, error) {
	var ud userDoc
	if err := core.FromDocument(doc, &ud); err != nil {
		return user.User{}, errors.Wrapf(err, "user %s", doc.ID())
	}
	usr := ud.User
	usr.PasswordHash = ud.PasswordHash
	return usr, nil
}

func (repo *userRepository) save(ctx context.Context, usr user.User) (user.User, error) {
	doc, err := core.ToDocument(userDoc{User: usr, PasswordHash: usr.PasswordHash})
	if err != nil {
		return user.User{}, err
	}
	if err = repo.db.Set(ctx, core.CollUsers, usr.ID, doc); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) query(ctx context.Context, filters ...core.Filter) ([]user.User, error) {
	docs, err := repo.db.Query(ctx, core.CollUsers, filters...)
	if err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(docs))
	for _, doc := range docs {
		usr, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	users, err := repo.query(ctx)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}

	excluded := make(map[string]bool, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = true
	}
	for _, usr := range users {
		if excluded[usr.ID] {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && strings.EqualFold(usr.Email, email) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.NewString()
	return repo.save(ctx, usr)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	users, err := repo.query(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	res := make([]user.User, 0, len(users))
	for _, usr := range users {
		if filter.Match(usr) {
			res = append(res, usr)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	if filter.ID != "" {
		doc, err := repo.db.Get(ctx, core.CollUsers, filter.ID)
		if err != nil {
			if errors.Cause(err) == core.ErrDocNotFound {
				return user.User{}, user.ErrNotFound
			}
			return user.User{}, errors.Wrap(err, "getting user")
		}
		return decodeUser(doc)
	}

	if filter.UsernameOrEmail != "" {
		for _, field := range []string{"username", "email"} {
			users, err := repo.query(ctx, core.Filter{Field: field, Value: filter.UsernameOrEmail})
			if err != nil {
				return user.User{}, errors.Wrap(err, "querying users")
			}
			if len(users) > 0 {
				return users[0], nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := repo.db.Get(ctx, core.CollUsers, usr.ID); err != nil {
		if errors.Cause(err) == core.ErrDocNotFound {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return repo.save(ctx, usr)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if err := repo.db.Delete(ctx, core.CollUsers, id); err != nil {
			return err
		}
	}
	return nil
}
