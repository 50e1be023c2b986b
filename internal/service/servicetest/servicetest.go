// Package servicetest provides in-memory implementations of the service
// stores and notifier for tests.
package servicetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/filekeep/filekeep-go/internal/model"
	"github.com/filekeep/filekeep-go/internal/repository"
)

// Users is an in-memory user store with the same conditional-update
// semantics as the MySQL repository.
type Users struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.User
	writes int
}

func NewUsers() *Users {
	return &Users{byID: map[int64]*model.User{}}
}

func (m *Users) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.IsVerified = false
	u.CreatedAt = time.Now().UTC()
	cp := *u
	m.byID[u.ID] = &cp
	m.writes++
	return nil
}

func (m *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *Users) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Users) MarkVerified(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.IsVerified {
		return false, nil
	}
	u.IsVerified = true
	m.writes++
	return true, nil
}

func (m *Users) SetResetToken(_ context.Context, id int64, token string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil
	}
	u.PasswordResetToken = &token
	u.PasswordResetExpires = &expires
	m.writes++
	return nil
}

func (m *Users) ResetPassword(_ context.Context, id int64, token, hashedPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.PasswordResetToken == nil || *u.PasswordResetToken != token {
		return repository.ErrResetTokenMismatch
	}
	u.HashedPassword = hashedPassword
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
	m.writes++
	return nil
}

// Get returns a copy of the user with email, or nil.
func (m *Users) Get(email string) *model.User {
	u, _ := m.GetByEmail(context.Background(), email)
	return u
}

// Writes counts successful mutations.
func (m *Users) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Files is an in-memory file store.
type Files struct {
	mu        sync.Mutex
	nextID    int64
	files     map[int64]*model.File
	CreateErr error
}

func NewFiles() *Files {
	return &Files{files: map[int64]*model.File{}}
}

func (m *Files) Create(_ context.Context, f *model.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.nextID++
	f.ID = m.nextID
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *Files) ListByUser(_ context.Context, userID int64, filter string) ([]model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.File{}
	for _, f := range m.files {
		if f.UserID != userID {
			continue
		}
		if filter != "" && !containsFold(f.Filename, filter) {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Files) GetByFilename(_ context.Context, userID int64, filename string) (*model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.newest(userID, filename)
	if f == nil {
		return nil, repository.ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *Files) IncrementDownloads(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.UserID != userID {
		return repository.ErrFileNotFound
	}
	f.DownloadCount++
	return nil
}

func (m *Files) DeleteByFilename(ctx context.Context, userID int64, filename string,
	removeBlob func(ctx context.Context, f model.File) error) (*model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.newest(userID, filename)
	if f == nil {
		return nil, repository.ErrFileNotFound
	}
	if err := removeBlob(ctx, *f); err != nil {
		return nil, err
	}
	delete(m.files, f.ID)
	return f, nil
}

func (m *Files) newest(userID int64, filename string) *model.File {
	var best *model.File
	for _, f := range m.files {
		if f.UserID == userID && f.Filename == filename && (best == nil || f.ID > best.ID) {
			best = f
		}
	}
	return best
}

// Get returns a copy of the record with id, or nil.
func (m *Files) Get(id int64) *model.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

// Count returns the number of stored records.
func (m *Files) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Mail is one recorded email.
type Mail struct {
	Kind, To, Name, Link string
}

// Notifier records every email instead of sending it. Sends fail with Err
// when it is set.
type Notifier struct {
	mu   sync.Mutex
	Sent []Mail
	Err  error
}

func (n *Notifier) SendVerification(_ context.Context, to, name, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Mail{Kind: "verification", To: to, Name: name, Link: link})
	return n.Err
}

func (n *Notifier) SendPasswordReset(_ context.Context, to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Mail{Kind: "reset", To: to, Link: link})
	return n.Err
}

// Last returns the most recent email.
func (n *Notifier) Last() Mail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Sent[len(n.Sent)-1]
}
