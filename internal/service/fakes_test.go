package service

import (
	"context"
	"sort"
	"sync"

	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/model"
	"github.com/and161185/doc-keeper/internal/repository"
)

type fakeUsers struct {
	mu     sync.Mutex
	byName map[string]*model.User

	createErr error
	getErr    error
	creates   int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{byName: map[string]*model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrDuplicateUsername
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	f.creates++
	return nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) List(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.byName))
	for _, u := range f.byName {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, upd model.UserUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[upd.Username]
	if !ok {
		return errs.ErrNotFound
	}
	if upd.PwdHash != nil {
		u.PwdHash, u.PwdSalt = upd.PwdHash, upd.PwdSalt
	}
	u.Projects, u.Permissions = upd.Projects, upd.Permissions
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[username]; !ok {
		return errs.ErrNotFound
	}
	delete(f.byName, username)
	return nil
}

func (f *fakeUsers) Ping(context.Context) error { return nil }

type fakeLogs struct {
	mu        sync.Mutex
	entries   []model.LogEntry
	appendErr error
	lastLimit int
}

var _ repository.LogRepository = (*fakeLogs)(nil)

func (f *fakeLogs) Append(_ context.Context, e model.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeLogs) Tail(_ context.Context, limit int) ([]model.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	out := make([]model.LogEntry, 0, limit)
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}
