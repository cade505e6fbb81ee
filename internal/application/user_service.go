package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/pilabs/users-api/internal/domain/entity"
	repo "github.com/pilabs/users-api/internal/domain/repository"
	"github.com/pilabs/users-api/pkg/apperrors"
	"github.com/pilabs/users-api/pkg/mailer"
)

// Cache is the slice of the cache client the service needs. A miss is
// (false, nil); only transport problems produce an error.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) (int64, error)
}

// Publisher pushes JSON jobs onto a queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Service orchestrates user operations over the store and cache. The store
// is authoritative; every cache, queue, or index failure after a successful
// write is logged and swallowed.
type Service struct {
	Repo     repo.UserRepository
	Cache    Cache
	CacheTTL time.Duration
	Logger   *logrus.Logger

	// optional collaborators; nil disables the feature
	Queue        Publisher
	ES           *elasticsearch.Client
	ESUsersIndex string
}

func NewService(r repo.UserRepository, cache Cache, cacheTTL time.Duration, logger *logrus.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{Repo: r, Cache: cache, CacheTTL: cacheTTL, Logger: logger}
}

func userKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func (s *Service) warn(err error, fields logrus.Fields, msg string) {
	if s.Logger == nil {
		return
	}
	s.Logger.WithError(err).WithFields(fields).Warn(msg)
}

type CreateUserInput struct {
	Email string
	Name  string
	Age   *int
}

// Create inserts a new user after probing the email for uniqueness. The
// probe bypasses the cache and reads the replica; the unique index on email
// backstops the remaining race. New users start active.
func (s *Service) Create(ctx context.Context, in CreateUserInput) (*entity.User, error) {
	existing, err := s.Repo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("user", "email", in.Email)
	}

	u := &entity.User{
		Email:    in.Email,
		Name:     in.Name,
		Age:      in.Age,
		IsActive: true,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}

	if err := s.Cache.Set(ctx, userKey(u.ID), u, s.CacheTTL); err != nil {
		s.warn(err, logrus.Fields{"user_id": u.ID}, "cache populate after create failed")
	}
	if s.Queue != nil {
		if err := s.Queue.PublishJSON(ctx, mailer.WelcomeJob(u.Email, u.Name)); err != nil {
			s.warn(err, logrus.Fields{"user_id": u.ID}, "welcome email publish failed")
		}
	}
	s.indexUser(ctx, u)
	return u, nil
}

// GetByID is a cache-aside read: cache hit returns immediately, a miss (or a
// cache outage, which degrades to a miss) falls through to the replica and
// repopulates the cache best-effort.
func (s *Service) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	key := userKey(id)
	var cached entity.User
	hit, err := s.Cache.Get(ctx, key, &cached)
	if err != nil {
		s.warn(err, logrus.Fields{"key": key}, "cache read failed, falling back to store")
	} else if hit {
		return &cached, nil
	}

	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperrors.NotFound("user", id)
	}
	if err := s.Cache.Set(ctx, key, u, s.CacheTTL); err != nil {
		s.warn(err, logrus.Fields{"key": key}, "cache populate failed")
	}
	return u, nil
}

// GetByEmail always reads the replica directly; it serves the uniqueness
// probe, where freshness beats speed, so it is never cached.
func (s *Service) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperrors.NotFound("user", email)
	}
	return u, nil
}

// ListResult bundles one page with the full matching count.
type ListResult struct {
	Users []*entity.User
	Total int64
	Page  int
	Limit int
}

func (s *Service) List(ctx context.Context, f repo.ListFilter, p repo.Pagination) (*ListResult, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	users, total, err := s.Repo.List(ctx, f, p)
	if err != nil {
		return nil, err
	}
	return &ListResult{Users: users, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// Update applies a partial patch. An empty patch returns the current row
// without writing. A successful write invalidates the cache entry and
// re-reads the row from the store, never the cache, so a racing repopulation
// cannot hand back the pre-update value.
func (s *Service) Update(ctx context.Context, id int64, patch repo.UserPatch) (*entity.User, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return existing, nil
	}

	if err := s.Repo.Update(ctx, id, patch); err != nil {
		return nil, err
	}

	key := userKey(id)
	if _, err := s.Cache.Delete(ctx, key); err != nil {
		s.warn(err, logrus.Fields{"key": key}, "cache invalidate after update failed")
	}

	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperrors.NotFound("user", id)
	}
	s.indexUser(ctx, u)
	return u, nil
}

// Delete removes the row and invalidates the cache entry best-effort.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	key := userKey(id)
	if _, err := s.Cache.Delete(ctx, key); err != nil {
		s.warn(err, logrus.Fields{"key": key}, "cache invalidate after delete failed")
	}
	s.deleteIndexed(ctx, id)
	return nil
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	doc := map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"age":        u.Age,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{
		Index:      s.ESUsersIndex,
		DocumentID: strconv.FormatInt(u.ID, 10),
		Body:       strings.NewReader(string(b)),
		Refresh:    "false",
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		s.warn(err, logrus.Fields{"user_id": u.ID}, "es index failed")
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
}

func (s *Service) deleteIndexed(ctx context.Context, id int64) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	req := esapi.DeleteRequest{Index: s.ESUsersIndex, DocumentID: strconv.FormatInt(id, 10)}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		s.warn(err, logrus.Fields{"user_id": id}, "es delete failed")
		return
	}
	_ = res.Body.Close()
}

// Search performs a multi_match query on email and name against the
// secondary index. Returns an empty result when the index is not configured.
func (s *Service) Search(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESUsersIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
