package service

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
	"github.com/ymatsuda/quillpost/internal/repository"
)

// Hand-written in-memory fakes for the repository interfaces. They mirror the
// error contracts of the real backends (ErrNotFound, ErrConflict) so service
// tests exercise the same branches production does.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type mockStore struct {
	posts     map[int64]*model.Post
	postTags  map[int64][]string
	tags      map[string]*model.Tag
	favorites map[string]map[int64]time.Time
	users     map[string]*model.User

	nextPostID int64
	nextTagID  int64

	// Forced errors, returned verbatim when set.
	listPostsErr error
	createErr    error
}

func newMockStore() *mockStore {
	return &mockStore{
		posts:     make(map[int64]*model.Post),
		postTags:  make(map[int64][]string),
		tags:      make(map[string]*model.Tag),
		favorites: make(map[string]map[int64]time.Time),
		users:     make(map[string]*model.User),
	}
}

func (m *mockStore) CreatePost(_ context.Context, post *model.Post, tagNames []string) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextPostID++
	post.ID = m.nextPostID
	post.Date = time.Now()
	stored := *post
	m.posts[post.ID] = &stored
	m.postTags[post.ID] = append([]string(nil), tagNames...)
	for _, name := range tagNames {
		if _, ok := m.tags[name]; !ok {
			m.nextTagID++
			m.tags[name] = &model.Tag{ID: m.nextTagID, Name: name, Color: model.DefaultTagColor}
		}
	}
	return nil
}

func (m *mockStore) matches(post *model.Post, filter repository.PostFilter) bool {
	if filter.Owner != nil {
		if post.UserID == nil || *post.UserID != *filter.Owner {
			return false
		}
	}
	if filter.Tag != "" {
		found := false
		for _, name := range m.postTags[post.ID] {
			if name == filter.Tag {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if filter.FavoritedBy != "" {
		if _, ok := m.favorites[filter.FavoritedBy][post.ID]; !ok {
			return false
		}
	}
	return true
}

func (m *mockStore) view(post *model.Post, filter repository.PostFilter) model.PostView {
	v := model.PostView{Post: *post, Tags: []model.Tag{}}
	for _, name := range m.postTags[post.ID] {
		v.Tags = append(v.Tags, *m.tags[name])
	}
	for _, byPost := range m.favorites {
		if _, ok := byPost[post.ID]; ok {
			v.FavoriteCount++
		}
	}
	if filter.Viewer != "" {
		_, v.IsFavorited = m.favorites[filter.Viewer][post.ID]
	}
	if post.UserID != nil {
		if u, ok := m.users[*post.UserID]; ok {
			v.User = u.Summary()
		}
	}
	return v
}

func (m *mockStore) ListPosts(_ context.Context, filter repository.PostFilter) ([]model.PostView, error) {
	if m.listPostsErr != nil {
		return nil, m.listPostsErr
	}
	views := []model.PostView{}
	for _, post := range m.posts {
		if m.matches(post, filter) {
			views = append(views, m.view(post, filter))
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID > views[j].ID })
	return views, nil
}

func (m *mockStore) GetPost(_ context.Context, id int64, filter repository.PostFilter) (*model.PostView, error) {
	post, ok := m.posts[id]
	if !ok || !m.matches(post, filter) {
		return nil, apperror.NotFound("post", id)
	}
	v := m.view(post, filter)
	return &v, nil
}

func (m *mockStore) UpdatePost(_ context.Context, post *model.Post) error {
	if _, ok := m.posts[post.ID]; !ok {
		return apperror.NotFound("post", post.ID)
	}
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *mockStore) DeletePost(_ context.Context, id int64) error {
	if _, ok := m.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(m.posts, id)
	delete(m.postTags, id)
	for _, byPost := range m.favorites {
		delete(byPost, id)
	}
	return nil
}

func (m *mockStore) ListTags(_ context.Context) ([]model.TagWithCount, error) {
	tags := []model.TagWithCount{}
	for name, tag := range m.tags {
		count := 0
		for _, names := range m.postTags {
			for _, n := range names {
				if n == name {
					count++
				}
			}
		}
		tags = append(tags, model.TagWithCount{Tag: *tag, PostCount: count})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

func (m *mockStore) GetTagByName(_ context.Context, name string) (*model.Tag, error) {
	tag, ok := m.tags[name]
	if !ok {
		return nil, apperror.NotFound("tag", name)
	}
	result := *tag
	return &result, nil
}

func (m *mockStore) CreateTag(_ context.Context, tag *model.Tag) error {
	if _, ok := m.tags[tag.Name]; ok {
		return apperror.Conflict("tag already exists")
	}
	m.nextTagID++
	tag.ID = m.nextTagID
	stored := *tag
	m.tags[tag.Name] = &stored
	return nil
}

func (m *mockStore) ListFavorites(_ context.Context, userID string) ([]model.FavoriteView, error) {
	favorites := []model.FavoriteView{}
	for postID, createdAt := range m.favorites[userID] {
		f := model.FavoriteView{
			Favorite: model.Favorite{UserID: userID, PostID: postID, CreatedAt: createdAt},
		}
		if post, ok := m.posts[postID]; ok {
			v := m.view(post, repository.PostFilter{Viewer: userID})
			f.Post = &v
		}
		favorites = append(favorites, f)
	}
	sort.Slice(favorites, func(i, j int) bool { return favorites[i].PostID > favorites[j].PostID })
	return favorites, nil
}

func (m *mockStore) AddFavorite(_ context.Context, userID string, postID int64) (*model.Favorite, error) {
	if m.favorites[userID] == nil {
		m.favorites[userID] = make(map[int64]time.Time)
	}
	if _, ok := m.favorites[userID][postID]; ok {
		return nil, apperror.Conflict("post is already favorited")
	}
	now := time.Now()
	m.favorites[userID][postID] = now
	return &model.Favorite{UserID: userID, PostID: postID, CreatedAt: now}, nil
}

func (m *mockStore) FavoriteExists(_ context.Context, userID string, postID int64) (bool, error) {
	_, ok := m.favorites[userID][postID]
	return ok, nil
}

func (m *mockStore) RemoveFavorite(_ context.Context, userID string, postID int64) error {
	if _, ok := m.favorites[userID][postID]; !ok {
		return apperror.NotFound("favorite", postID)
	}
	delete(m.favorites[userID], postID)
	return nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*model.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *user
	return &result, nil
}

func (m *mockStore) UpsertUser(_ context.Context, user *model.User) error {
	now := time.Now()
	if existing, ok := m.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockStore) CreateUser(_ context.Context, user *model.User) error {
	if _, ok := m.users[user.ID]; ok {
		return apperror.Conflict("user already exists")
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockStore) UpdateUser(_ context.Context, user *model.User) error {
	existing, ok := m.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockStore) DeleteUser(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.users, id)
	return nil
}

// addUser seeds a synced user for tests that need one.
func (m *mockStore) addUser(t *testing.T, id string) {
	t.Helper()
	if err := m.CreateUser(context.Background(), &model.User{ID: id, Email: id + "@example.com"}); err != nil {
		t.Fatalf("seeding user %s: %v", id, err)
	}
}
