package service

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/auth"
	"github.com/sakif/ecosphere/internal/model"
	"github.com/sakif/ecosphere/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================
//
// Hand-written in-memory fakes of the repositories, the identity provider
// and the session. Each one stores copies, so tests can't accidentally
// share state with the service through a pointer.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errDatabaseDown = errors.New("database is down")

// ---- users ----

type fakeUserRepo struct {
	users  map[int64]model.User
	nextID int64

	getErr    error // returned by every lookup when set
	deleteErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	for _, existing := range f.users {
		if existing.Username == u.Username || existing.ExternalID == u.ExternalID {
			return apperror.Conflict("username", "user already exists")
		}
	}
	f.nextID++
	u.ID = f.nextID
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUserRepo) find(match func(model.User) bool, key string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	return f.find(func(u model.User) bool { return u.ID == id }, strconv.FormatInt(id, 10))
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u model.User) bool { return u.Username == username }, username)
}

func (f *fakeUserRepo) GetByExternalID(_ context.Context, externalID string) (*model.User, error) {
	return f.find(func(u model.User) bool { return u.ExternalID == externalID }, externalID)
}

func (f *fakeUserRepo) Delete(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	delete(f.users, id)
	return nil
}

// ---- posts ----

type fakePostRepo struct {
	posts  map[int64]model.Post
	nextID int64
}

var _ repository.PostRepository = (*fakePostRepo)(nil)

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[int64]model.Post)}
}

func (f *fakePostRepo) Create(_ context.Context, p *model.Post) error {
	f.nextID++
	p.ID = f.nextID
	f.posts[p.ID] = *p
	return nil
}

func (f *fakePostRepo) GetByID(_ context.Context, id int64) (*model.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	return &p, nil
}

func (f *fakePostRepo) all(keep func(model.Post) bool) []model.Post {
	out := []model.Post{}
	for _, p := range f.posts {
		if keep(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b model.Post) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (f *fakePostRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	out := f.all(func(model.Post) bool { return true })
	slices.SortStableFunc(out, func(a, b model.Post) int {
		if opts.Sort == model.SortByLikes {
			return cmp.Compare(b.Likes, a.Likes)
		}
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out, nil
}

func (f *fakePostRepo) ListByUsername(_ context.Context, username string) ([]model.Post, error) {
	return f.all(func(p model.Post) bool { return p.Username == username }), nil
}

func (f *fakePostRepo) Search(_ context.Context, query string) ([]model.Post, error) {
	q := strings.ToLower(query)
	return f.all(func(p model.Post) bool {
		return strings.Contains(strings.ToLower(p.Content), q) || strings.Contains(strings.ToLower(p.Username), q)
	}), nil
}

func (f *fakePostRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	delete(f.posts, id)
	return nil
}

func (f *fakePostRepo) DeleteByUsername(_ context.Context, username string) (int64, error) {
	var n int64
	for id, p := range f.posts {
		if p.Username == username {
			delete(f.posts, id)
			n++
		}
	}
	return n, nil
}

func (f *fakePostRepo) AddLikes(_ context.Context, id, delta int64) (int64, error) {
	p, ok := f.posts[id]
	if !ok {
		return 0, apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	p.Likes = max(p.Likes+delta, 0)
	f.posts[id] = p
	return p.Likes, nil
}

// ---- identity provider ----

type fakeProvider struct {
	identity *auth.ExternalIdentity
	err      error
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*auth.ExternalIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

// prefixHasher is a transparent IdentityHasher so tests can predict the
// stored identity.
type prefixHasher struct{}

func (prefixHasher) Hash(subject string) string       { return "h:" + subject }
func (prefixHasher) HashLocal(username string) string { return "h:local:" + username }

// ---- session ----

type fakeSession struct {
	userID      int64
	loggedIn    bool
	pendingID   string
	pendingName string
	liked       []int64
	invalidated bool
}

var (
	_ SessionState = (*fakeSession)(nil)
	_ LikeSet      = (*fakeSession)(nil)
)

func (s *fakeSession) UserID() (int64, bool) { return s.userID, s.loggedIn }

func (s *fakeSession) Authenticate(id int64) {
	s.userID, s.loggedIn = id, true
	s.pendingID, s.pendingName = "", ""
}

func (s *fakeSession) BeginRegistration(externalID, name string) {
	s.pendingID, s.pendingName = externalID, name
}

func (s *fakeSession) PendingRegistration() (string, string, bool) {
	return s.pendingID, s.pendingName, s.pendingID != ""
}

func (s *fakeSession) Invalidate() { *s = fakeSession{invalidated: true} }

func (s *fakeSession) HasLiked(id int64) bool { return slices.Contains(s.liked, id) }

func (s *fakeSession) MarkLiked(id int64) {
	if !s.HasLiked(id) {
		s.liked = append(s.liked, id)
	}
}

func (s *fakeSession) MarkUnliked(id int64) {
	s.liked = slices.DeleteFunc(s.liked, func(v int64) bool { return v == id })
}
