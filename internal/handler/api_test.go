package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dan9191/user-service/internal/models"
	"github.com/Dan9191/user-service/internal/repository"
	"github.com/Dan9191/user-service/internal/service"
	"github.com/Dan9191/user-service/internal/utils/password"
)

// memStore mimics the users table, including its two unique constraints.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   []models.User
}

func (s *memStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.Username == u.Username {
			return repository.ErrUsernameTaken
		}
		if row.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now().UTC()
	s.rows = append(s.rows, *u)
	return nil
}

func (s *memStore) FindUserByID(_ context.Context, id int64) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.ID == id })
}

func (s *memStore) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username })
}

func (s *memStore) find(match func(models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if match(row) {
			u := row
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) ListUsers(context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.User{}, s.rows...), nil
}

func (s *memStore) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func newAPI(t *testing.T) (*mux.Router, *memStore) {
	t.Helper()
	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	store := &memStore{}
	logger, _ := test.NewNullLogger()
	r := mux.NewRouter()
	NewHandler(service.NewService(store, hasher, logger), logger, "1.0.0").RegisterRoutes(r)
	return r, store
}

func user(username, email, pass string) map[string]string {
	return map[string]string{"username": username, "email": email, "password": pass}
}

func TestAPI_CreateThenFetchByUsername(t *testing.T) {
	r, _ := newAPI(t)

	rec := do(r, http.MethodPost, "/users/", user("johndoe", "johndoe@example.com", "securepassword123"))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode(t, rec)
	assert.Equal(t, "johndoe", created["username"])
	assert.Equal(t, "johndoe@example.com", created["email"])
	assert.Contains(t, created, "id")
	assert.Contains(t, created, "created_at")
	assert.NotContains(t, created, "password")
	assert.NotContains(t, created, "password_hash")

	rec = do(r, http.MethodGet, "/users/username/johndoe", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decode(t, rec)
	assert.Equal(t, "johndoe", fetched["username"])
	assert.Equal(t, "johndoe@example.com", fetched["email"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestAPI_CreateWithoutTrailingSlash(t *testing.T) {
	r, _ := newAPI(t)

	rec := do(r, http.MethodPost, "/users", user("johndoe", "johndoe@example.com", "securepassword123"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAPI_PasswordIsHashedInStore(t *testing.T) {
	r, store := newAPI(t)

	rec := do(r, http.MethodPost, "/users/", user("testuser", "test@example.com", "plainpassword123"))
	require.Equal(t, http.StatusCreated, rec.Code)

	stored, err := store.FindUserByUsername(context.Background(), "testuser")
	require.NoError(t, err)
	assert.NotEqual(t, "plainpassword123", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2a$"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("plainpassword123")))
}

func TestAPI_Duplicates(t *testing.T) {
	r, _ := newAPI(t)

	rec := do(r, http.MethodPost, "/users/", user("johndoe", "john1@example.com", "securepassword123"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(r, http.MethodPost, "/users/", user("johndoe", "john2@example.com", "securepassword123"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "Username already registered")

	rec = do(r, http.MethodPost, "/users/", user("janedoe", "john1@example.com", "securepassword123"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "Email already registered")
}

func TestAPI_ValidationFailuresCreateNothing(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"invalid email", user("testuser", "not-an-email", "securepass123"), "email"},
		{"short password", user("testuser", "test@example.com", "short"), "password"},
		{"short username", user("ab", "test@example.com", "securepass123"), "username"},
		{"nul in username", user("jo\x00hn", "test@example.com", "securepass123"), "username"},
		{"missing password", map[string]string{"username": "testuser", "email": "test@example.com"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store := newAPI(t)

			rec := do(r, http.MethodPost, "/users/", tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			detail, ok := decode(t, rec)["detail"].([]any)
			require.True(t, ok, "detail should be a list of field errors")
			require.NotEmpty(t, detail)
			assert.Equal(t, tt.field, detail[0].(map[string]any)["field"])

			users, _ := store.ListUsers(context.Background())
			assert.Empty(t, users)
		})
	}
}

func TestAPI_List(t *testing.T) {
	r, _ := newAPI(t)

	rec := do(r, http.MethodGet, "/users/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	do(r, http.MethodPost, "/users/", user("user1", "user1@example.com", "pass123456"))
	do(r, http.MethodPost, "/users/", user("user2", "user2@example.com", "pass123456"))

	rec = do(r, http.MethodGet, "/users/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "user1", users[0]["username"])
	assert.Equal(t, "user2", users[1]["username"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestAPI_GetByID(t *testing.T) {
	r, _ := newAPI(t)

	rec := do(r, http.MethodPost, "/users/", user("testuser", "test@example.com", "pass123456"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := int64(decode(t, rec)["id"].(float64))

	rec = do(r, http.MethodGet, "/users/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(id), decode(t, rec)["id"])

	rec = do(r, http.MethodGet, "/users/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, strings.ToLower(decode(t, rec)["detail"].(string)), "not found")

	rec = do(r, http.MethodGet, "/users/username/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DeleteIsIdempotentInEffect(t *testing.T) {
	r, _ := newAPI(t)

	rec := do(r, http.MethodPost, "/users/", user("testuser", "test@example.com", "pass123456"))
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/users/" + itoa(int64(decode(t, rec)["id"].(float64)))

	rec = do(r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/users/9999", nil).Code)
}

// The in-memory store serializes inserts, so this checks that concurrent
// duplicates map to one 201 and the rest to 409, not database atomicity.
func TestAPI_ConcurrentDuplicateCreatesMapToSingleCreated(t *testing.T) {
	r, store := newAPI(t)

	const n = 8
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- do(r, http.MethodPost, "/users/", user("racer", "racer@example.com", "securepassword123")).Code
		}()
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for c := range codes {
		counts[c]++
	}
	assert.Equal(t, 1, counts[http.StatusCreated])
	assert.Equal(t, n-1, counts[http.StatusConflict])

	users, _ := store.ListUsers(context.Background())
	assert.Len(t, users, 1)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
