package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/domain/achievement"
	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/domain/user"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
)

// Store is an in-memory implementation of storage.Store. It is safe for
// concurrent use and is primarily intended for tests and local development.
// Transactions are serialized and run against a copy of the data. On commit
// only the rows the transaction wrote are merged back, so writes made outside
// the transaction while it was open are preserved.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *state
	inTx bool

	// set on transaction stores only
	parent  *Store
	touched *touchSet
}

// touchSet records the ids a transaction created, updated or deleted.
type touchSet struct {
	users        map[int64]struct{}
	records      map[int64]struct{}
	achievements map[int64]struct{}
	progress     map[int64]struct{}
}

func newTouchSet() *touchSet {
	return &touchSet{
		users:        make(map[int64]struct{}),
		records:      make(map[int64]struct{}),
		achievements: make(map[int64]struct{}),
		progress:     make(map[int64]struct{}),
	}
}

func (t *touchSet) user(id int64) {
	if t != nil {
		t.users[id] = struct{}{}
	}
}

func (t *touchSet) record(id int64) {
	if t != nil {
		t.records[id] = struct{}{}
	}
}

func (t *touchSet) achievement(id int64) {
	if t != nil {
		t.achievements[id] = struct{}{}
	}
}

func (t *touchSet) progressRow(id int64) {
	if t != nil {
		t.progress[id] = struct{}{}
	}
}

type state struct {
	nextID       int64
	users        map[int64]user.User
	records      map[int64]training.Record
	achievements map[int64]achievement.Achievement
	progress     map[int64]achievement.Progress
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{data: newState()}
}

func newState() *state {
	return &state{
		nextID:       1,
		users:        make(map[int64]user.User),
		records:      make(map[int64]training.Record),
		achievements: make(map[int64]achievement.Achievement),
		progress:     make(map[int64]achievement.Progress),
	}
}

func (st *state) clone() *state {
	out := &state{
		nextID:       st.nextID,
		users:        make(map[int64]user.User, len(st.users)),
		records:      make(map[int64]training.Record, len(st.records)),
		achievements: make(map[int64]achievement.Achievement, len(st.achievements)),
		progress:     make(map[int64]achievement.Progress, len(st.progress)),
	}
	for k, v := range st.users {
		out.users[k] = cloneUser(v)
	}
	for k, v := range st.records {
		out.records[k] = v
	}
	for k, v := range st.achievements {
		out.achievements[k] = v
	}
	for k, v := range st.progress {
		out.progress[k] = cloneProgress(v)
	}
	return out
}

func (st *state) nextIDLocked() int64 {
	id := st.nextID
	st.nextID++
	return id
}

// nextIDLocked hands out ids from the root store so a transaction never
// reuses an id allocated outside it.
func (s *Store) nextIDLocked() int64 {
	if s.parent == nil {
		return s.data.nextIDLocked()
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	return s.parent.data.nextIDLocked()
}

// WithTx runs fn against a copy of the data and merges the rows fn wrote
// back into the store when fn succeeds. The merge fails with
// storage.ErrConflict or storage.ErrNotFound when a concurrent write made
// the transaction's changes invalid, in which case nothing is applied.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	tx := &Store{data: snapshot, inTx: true, parent: s, touched: newTouchSet()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.data.clone()
	merged.apply(tx.data, tx.touched)
	if err := merged.validate(tx.touched); err != nil {
		return err
	}
	s.data = merged
	return nil
}

// apply copies the touched rows of src into st. Rows missing from src were
// deleted by the transaction; deleting a user also drops rows that reference
// it, including ones written after the transaction started.
func (st *state) apply(src *state, t *touchSet) {
	for id := range t.users {
		if u, ok := src.users[id]; ok {
			st.users[id] = cloneUser(u)
			continue
		}
		delete(st.users, id)
		for rid, rec := range st.records {
			if rec.UserID == id {
				delete(st.records, rid)
			}
		}
		for pid, p := range st.progress {
			if p.UserID == id {
				delete(st.progress, pid)
			}
		}
	}
	for id := range t.records {
		if rec, ok := src.records[id]; ok {
			st.records[id] = rec
		} else {
			delete(st.records, id)
		}
	}
	for id := range t.achievements {
		if a, ok := src.achievements[id]; ok {
			st.achievements[id] = a
		} else {
			delete(st.achievements, id)
		}
	}
	for id := range t.progress {
		if p, ok := src.progress[id]; ok {
			st.progress[id] = cloneProgress(p)
		} else {
			delete(st.progress, id)
		}
	}
}

// validate re-checks the constraints of the touched rows against st.
func (st *state) validate(t *touchSet) error {
	for id := range t.users {
		u, ok := st.users[id]
		if !ok {
			continue
		}
		if err := uniqueIn(st.users, u); err != nil {
			return err
		}
	}
	for id := range t.records {
		rec, ok := st.records[id]
		if !ok {
			continue
		}
		if _, ok := st.users[rec.UserID]; !ok {
			return fmt.Errorf("user %d: %w", rec.UserID, storage.ErrNotFound)
		}
	}
	for id := range t.achievements {
		a, ok := st.achievements[id]
		if !ok {
			continue
		}
		for otherID, other := range st.achievements {
			if otherID != id && other.Name == a.Name {
				return fmt.Errorf("achievement %q: %w", a.Name, storage.ErrConflict)
			}
		}
	}
	for id := range t.progress {
		p, ok := st.progress[id]
		if !ok {
			continue
		}
		if _, ok := st.users[p.UserID]; !ok {
			return fmt.Errorf("user %d: %w", p.UserID, storage.ErrNotFound)
		}
		if _, ok := st.achievements[p.AchievementID]; !ok {
			return fmt.Errorf("achievement %d: %w", p.AchievementID, storage.ErrNotFound)
		}
		for otherID, other := range st.progress {
			if otherID != id && other.UserID == p.UserID && other.AchievementID == p.AchievementID {
				return fmt.Errorf("progress of user %d on achievement %d: %w",
					p.UserID, p.AchievementID, storage.ErrConflict)
			}
		}
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// UserStore implementation -------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUniqueLocked(u); err != nil {
		return user.User{}, err
	}

	u.ID = s.nextIDLocked()
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt

	s.data.users[u.ID] = cloneUser(u)
	s.touched.user(u.ID)
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.data.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", u.ID, storage.ErrNotFound)
	}
	if err := s.checkUniqueLocked(u); err != nil {
		return user.User{}, err
	}

	u.CreatedAt = original.CreatedAt
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}

	s.data.users[u.ID] = cloneUser(u)
	s.touched.user(u.ID)
	return cloneUser(u), nil
}

func (s *Store) checkUniqueLocked(u user.User) error {
	return uniqueIn(s.data.users, u)
}

func uniqueIn(users map[int64]user.User, u user.User) error {
	for id, existing := range users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username {
			return fmt.Errorf("username %q: %w", u.Username, storage.ErrUsernameTaken)
		}
		if u.Email != nil && existing.Email != nil && *existing.Email == *u.Email {
			return fmt.Errorf("email %q: %w", *u.Email, storage.ErrEmailTaken)
		}
		if u.WalletAddress != nil && existing.WalletAddress != nil && *existing.WalletAddress == *u.WalletAddress {
			return fmt.Errorf("wallet %q: %w", *u.WalletAddress, storage.ErrWalletTaken)
		}
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.data.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	return s.findUser("username "+username, func(u user.User) bool { return u.Username == username })
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	return s.findUser("email "+email, func(u user.User) bool { return u.Email != nil && *u.Email == email })
}

func (s *Store) GetUserByWallet(_ context.Context, address string) (user.User, error) {
	return s.findUser("wallet "+address, func(u user.User) bool {
		return u.WalletAddress != nil && *u.WalletAddress == address
	})
}

func (s *Store) findUser(desc string, match func(user.User) bool) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.data.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return user.User{}, fmt.Errorf("user with %s: %w", desc, storage.ErrNotFound)
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.data.users))
	for _, u := range s.data.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.users), nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	delete(s.data.users, id)
	s.touched.user(id)
	for rid, rec := range s.data.records {
		if rec.UserID == id {
			delete(s.data.records, rid)
			s.touched.record(rid)
		}
	}
	for pid, p := range s.data.progress {
		if p.UserID == id {
			delete(s.data.progress, pid)
			s.touched.progressRow(pid)
		}
	}
	return nil
}

// TrainingStore implementation ---------------------------------------------

func (s *Store) CreateRecord(_ context.Context, rec training.Record) (training.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.users[rec.UserID]; !ok {
		return training.Record{}, fmt.Errorf("user %d: %w", rec.UserID, storage.ErrNotFound)
	}
	rec.ID = s.nextIDLocked()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.data.records[rec.ID] = rec
	s.touched.record(rec.ID)
	return rec, nil
}

// matchingLocked returns records accepted by keep, newest first.
func (s *Store) matchingLocked(keep func(training.Record) bool) []training.Record {
	var out []training.Record
	for _, rec := range s.data.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func sinceMatch(since training.Date, d training.Date) bool {
	return since.IsZero() || !d.Before(since)
}

func (s *Store) ListRecords(_ context.Context, f training.Filter) ([]training.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.matchingLocked(func(rec training.Record) bool {
		if f.UserID != 0 && rec.UserID != f.UserID {
			return false
		}
		if !sinceMatch(f.From, rec.SessionDate) {
			return false
		}
		if !f.To.IsZero() && rec.SessionDate.After(f.To) {
			return false
		}
		return f.Difficulty == "" || rec.Difficulty == f.Difficulty
	})

	total := len(all)
	start := f.Offset
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	page := make([]training.Record, end-start)
	copy(page, all[start:end])
	return page, total, nil
}

func (s *Store) LatestRecord(_ context.Context, userID int64) (training.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.matchingLocked(func(rec training.Record) bool { return rec.UserID == userID })
	if len(recs) == 0 {
		return training.Record{}, fmt.Errorf("latest record of user %d: %w", userID, storage.ErrNotFound)
	}
	return recs[0], nil
}

func (s *Store) SessionDates(_ context.Context, userID int64) ([]training.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[training.Date]struct{})
	var out []training.Date
	for _, rec := range s.data.records {
		if rec.UserID != userID {
			continue
		}
		if _, ok := seen[rec.SessionDate]; ok {
			continue
		}
		seen[rec.SessionDate] = struct{}{}
		out = append(out, rec.SessionDate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, nil
}

func addTotals(t *training.Totals, rec training.Record) {
	t.Sessions++
	t.TotalDuration += int64(rec.TotalDuration)
	t.TotalSets += int64(rec.SetsCompleted)
	t.TotalReps += int64(rec.RepsCompleted)
}

func (s *Store) Totals(_ context.Context, userID int64, since training.Date) (training.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t training.Totals
	for _, rec := range s.data.records {
		if userID != 0 && rec.UserID != userID {
			continue
		}
		if sinceMatch(since, rec.SessionDate) {
			addTotals(&t, rec)
		}
	}
	return t, nil
}

func (s *Store) DifficultyTotals(_ context.Context, userID int64) ([]training.DifficultyTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDifficulty := make(map[training.Difficulty]*training.DifficultyTotals)
	for _, rec := range s.data.records {
		if rec.UserID != userID {
			continue
		}
		dt, ok := byDifficulty[rec.Difficulty]
		if !ok {
			dt = &training.DifficultyTotals{Difficulty: rec.Difficulty}
			byDifficulty[rec.Difficulty] = dt
		}
		addTotals(&dt.Totals, rec)
	}

	out := make([]training.DifficultyTotals, 0, len(byDifficulty))
	for _, dt := range byDifficulty {
		out = append(out, *dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Difficulty < out[j].Difficulty })
	return out, nil
}

func (s *Store) DailyTotals(_ context.Context, userID int64, since training.Date) ([]training.DailyTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[training.Date]*training.DailyTotals)
	for _, rec := range s.data.records {
		if rec.UserID != userID || !sinceMatch(since, rec.SessionDate) {
			continue
		}
		dt, ok := byDay[rec.SessionDate]
		if !ok {
			dt = &training.DailyTotals{Date: rec.SessionDate}
			byDay[rec.SessionDate] = dt
		}
		addTotals(&dt.Totals, rec)
	}

	out := make([]training.DailyTotals, 0, len(byDay))
	for _, dt := range byDay {
		out = append(out, *dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) Leaderboard(_ context.Context, since training.Date, limit int) ([]training.LeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := make(map[int64]*training.LeaderboardRow)
	for _, rec := range s.data.records {
		if !sinceMatch(since, rec.SessionDate) {
			continue
		}
		u, ok := s.data.users[rec.UserID]
		if !ok {
			continue
		}
		row, ok := byUser[u.ID]
		if !ok {
			row = &training.LeaderboardRow{UserID: u.ID, Username: u.Username, Nickname: u.Nickname, AvatarURL: u.AvatarURL}
			byUser[u.ID] = row
		}
		addTotals(&row.Totals, rec)
	}

	out := make([]training.LeaderboardRow, 0, len(byUser))
	for _, row := range byUser {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sessions != out[j].Sessions {
			return out[i].Sessions > out[j].Sessions
		}
		if out[i].TotalDuration != out[j].TotalDuration {
			return out[i].TotalDuration > out[j].TotalDuration
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountActiveUsers(_ context.Context, day training.Date) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make(map[int64]struct{})
	for _, rec := range s.data.records {
		if rec.SessionDate == day {
			if _, ok := s.data.users[rec.UserID]; ok {
				active[rec.UserID] = struct{}{}
			}
		}
	}
	return len(active), nil
}

// AchievementStore implementation ------------------------------------------

func (s *Store) CreateAchievement(_ context.Context, a achievement.Achievement) (achievement.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.achievements {
		if existing.Name == a.Name {
			return achievement.Achievement{}, fmt.Errorf("achievement %q: %w", a.Name, storage.ErrConflict)
		}
	}
	a.ID = s.nextIDLocked()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.data.achievements[a.ID] = a
	s.touched.achievement(a.ID)
	return a, nil
}

func (s *Store) GetAchievementByName(_ context.Context, name string) (achievement.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.data.achievements {
		if a.Name == name {
			return a, nil
		}
	}
	return achievement.Achievement{}, fmt.Errorf("achievement %q: %w", name, storage.ErrNotFound)
}

func (s *Store) ListAchievements(_ context.Context) ([]achievement.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]achievement.Achievement, 0, len(s.data.achievements))
	for _, a := range s.data.achievements {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountAchievements(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.achievements), nil
}

func (s *Store) CreateProgress(_ context.Context, p achievement.Progress) (achievement.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.users[p.UserID]; !ok {
		return achievement.Progress{}, fmt.Errorf("user %d: %w", p.UserID, storage.ErrNotFound)
	}
	if _, ok := s.data.achievements[p.AchievementID]; !ok {
		return achievement.Progress{}, fmt.Errorf("achievement %d: %w", p.AchievementID, storage.ErrNotFound)
	}
	for _, existing := range s.data.progress {
		if existing.UserID == p.UserID && existing.AchievementID == p.AchievementID {
			return achievement.Progress{}, fmt.Errorf("progress of user %d on achievement %d: %w",
				p.UserID, p.AchievementID, storage.ErrConflict)
		}
	}
	p.ID = s.nextIDLocked()
	p.Achievement = nil
	s.data.progress[p.ID] = cloneProgress(p)
	s.touched.progressRow(p.ID)
	return s.withAchievementLocked(p), nil
}

func (s *Store) UpdateProgress(_ context.Context, p achievement.Progress) (achievement.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.data.progress[p.ID]
	if !ok {
		return achievement.Progress{}, fmt.Errorf("progress %d: %w", p.ID, storage.ErrNotFound)
	}
	original.Progress = p.Progress
	original.Unlocked = p.Unlocked
	original.UnlockedAt = p.UnlockedAt
	s.data.progress[p.ID] = cloneProgress(original)
	s.touched.progressRow(p.ID)
	return s.withAchievementLocked(original), nil
}

func (s *Store) ListProgress(_ context.Context, userID int64) ([]achievement.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []achievement.Progress
	for _, p := range s.data.progress {
		if p.UserID == userID {
			out = append(out, s.withAchievementLocked(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Unlocked != out[j].Unlocked {
			return out[i].Unlocked
		}
		if out[i].Achievement.TargetValue != out[j].Achievement.TargetValue {
			return out[i].Achievement.TargetValue < out[j].Achievement.TargetValue
		}
		return out[i].AchievementID < out[j].AchievementID
	})
	return out, nil
}

func (s *Store) withAchievementLocked(p achievement.Progress) achievement.Progress {
	out := cloneProgress(p)
	if a, ok := s.data.achievements[p.AchievementID]; ok {
		out.Achievement = &a
	} else {
		out.Achievement = &achievement.Achievement{ID: p.AchievementID}
	}
	return out
}

// helpers --------------------------------------------------------------------

func cloneUser(u user.User) user.User {
	u.Email = cloneString(u.Email)
	u.Nickname = cloneString(u.Nickname)
	u.Bio = cloneString(u.Bio)
	u.AvatarURL = cloneString(u.AvatarURL)
	u.WalletAddress = cloneString(u.WalletAddress)
	u.WalletType = cloneString(u.WalletType)
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}

func cloneProgress(p achievement.Progress) achievement.Progress {
	if p.UnlockedAt != nil {
		t := *p.UnlockedAt
		p.UnlockedAt = &t
	}
	if p.Achievement != nil {
		a := *p.Achievement
		p.Achievement = &a
	}
	return p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.Clone(*s)
	return &v
}
