package voting

import (
	"context"
	"fmt"

	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/pkg/logger"
)

// UsernameKey is the preference key remembering the active rater.
const UsernameKey = "vauva.username"

// Persistence loads and saves the account's working set.
type Persistence interface {
	// Load returns the account's records in store order.
	Load(ctx context.Context) ([]heart.Record, error)
	// Save sends the full working set and returns the authoritative list.
	Save(ctx context.Context, records []heart.Record) ([]heart.Record, error)
}

// Preferences is durable client-side key/value storage.
type Preferences interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Session is the state container of one client session. It is created per
// login and dropped on logout. A Session is not safe for concurrent use.
type Session struct {
	state   State
	store   Persistence
	prefs   Preferences
	account heart.Account
	log     logger.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPersistence sets the load/save collaborator.
func WithPersistence(p Persistence) SessionOption {
	return func(s *Session) { s.store = p }
}

// WithPreferences sets where the active rater is remembered.
func WithPreferences(p Preferences) SessionOption {
	return func(s *Session) { s.prefs = p }
}

// WithAccount sets the session identity.
func WithAccount(a heart.Account) SessionOption {
	return func(s *Session) { s.account = a }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSession creates a session in the initial state.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{state: Initial(), account: heart.LoggedOut(), log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Account returns the session identity.
func (s *Session) Account() heart.Account { return s.account }

// Dispatch reduces in into the state. SetUsername is remembered through
// Preferences once; a failure is logged and not retried.
func (s *Session) Dispatch(ctx context.Context, in Intent) {
	s.state = Reduce(s.state, in)
	if u, ok := in.(SetUsername); ok && s.prefs != nil {
		if err := s.prefs.Set(UsernameKey, u.Username); err != nil {
			s.log.Warn(ctx, "remember rater failed", logger.String("username", u.Username), logger.Error(err))
		}
	}
}

// SelectRater makes username the active rater.
func (s *Session) SelectRater(ctx context.Context, username string) error {
	if !s.account.Permits(username) {
		return fmt.Errorf("%w: %s", ErrUnknownRater, username)
	}
	s.Dispatch(ctx, SetUsername{Username: username})
	return nil
}

// Restore selects the remembered rater, if any and still permitted, without
// writing it back. It returns the restored username.
func (s *Session) Restore(ctx context.Context) string {
	if s.prefs == nil {
		return ""
	}
	username, ok, err := s.prefs.Get(UsernameKey)
	if err != nil {
		s.log.Warn(ctx, "read remembered rater failed", logger.Error(err))
		return ""
	}
	if !ok || username == "" {
		return ""
	}
	if s.account.IsLoggedIn && !s.account.Permits(username) {
		s.log.Debug(ctx, "remembered rater not permitted", logger.String("username", username))
		return ""
	}
	s.state = Reduce(s.state, SetUsername{Username: username})
	return username
}

// Load replaces the working set with the store's copy. On failure the
// local state is kept.
func (s *Session) Load(ctx context.Context) error {
	if s.store == nil {
		return ErrNoPersistence
	}
	records, err := s.store.Load(ctx)
	if err != nil {
		s.log.Error(ctx, "load hearts failed", logger.Error(err))
		return fmt.Errorf("load hearts: %w", err)
	}
	s.Dispatch(ctx, SetHearts{Records: records})
	return nil
}

// Save sends the working set and replaces it with the response. On failure
// pending tags stay so the save can be retried.
func (s *Session) Save(ctx context.Context) error {
	if s.store == nil {
		return ErrNoPersistence
	}
	records, err := s.store.Save(ctx, s.state.Hearts)
	if err != nil {
		s.log.Error(ctx, "save hearts failed", logger.Int("records", len(s.state.Hearts)), logger.Error(err))
		return fmt.Errorf("save hearts: %w", err)
	}
	s.Dispatch(ctx, SetHearts{Records: records})
	return nil
}

// Pending reports whether there are unsaved changes.
func (s *Session) Pending() bool { return Pending(s.state.Hearts) }

// Rate toggles the active rater's base round score on name.
func (s *Session) Rate(ctx context.Context, name string, score int) error {
	if s.state.ActiveUsername == "" {
		return ErrNoRater
	}
	if !validScore(score) {
		return fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}
	username := s.state.ActiveUsername
	if Find(s.state.Hearts, name, username) < 0 {
		s.Dispatch(ctx, AddHeart{Record: NewHeart(name, username, score)})
		return nil
	}
	s.Dispatch(ctx, SetHearts{Records: ToggleBase(s.state.Hearts, name, username, score)})
	return nil
}

// RateRound sets the active rater's score on name in the active extension
// round. Only the active rater can score as chooser.
func (s *Session) RateRound(ctx context.Context, name string, score int) error {
	if s.state.ActiveUsername == "" {
		return ErrNoRater
	}
	if s.state.ActiveRound < 1 {
		return ErrNoRound
	}
	if !validScore(score) {
		return fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}
	if CarrierIndex(s.state.Hearts, name) < 0 {
		return fmt.Errorf("%w: %s", ErrNotRated, name)
	}
	next := ToggleRound(s.state.Hearts, name, s.state.ActiveRound, s.state.ActiveUsername, score)
	s.Dispatch(ctx, SetHearts{Records: next})
	return nil
}

// EnterRound switches to round and pins the names already scored in it.
func (s *Session) EnterRound(ctx context.Context, round int) {
	s.Dispatch(ctx, SetRound{Round: round})
	s.Dispatch(ctx, ResetRoundSortList{})
}

// DeleteNames removes the active rater's hearts for names and saves.
func (s *Session) DeleteNames(ctx context.Context, names ...string) error {
	if s.state.ActiveUsername == "" {
		return ErrNoRater
	}
	s.Dispatch(ctx, SetHearts{Records: DeletionBatch(s.state.Hearts, s.state.ActiveUsername, names)})
	return s.Save(ctx)
}

// Logout clears the state. The remembered rater is kept.
func (s *Session) Logout(ctx context.Context) {
	s.Dispatch(ctx, Clear{})
	s.account = heart.LoggedOut()
}

// Results groups base round hearts by rater.
func (s *Session) Results() []RaterGroup { return GroupByRater(s.state.Hearts) }

// Matrix returns the active round's rater by name view.
func (s *Session) Matrix() Matrix {
	return RoundMatrix(s.state.Hearts, s.account.Usernames, s.state.ActiveRound)
}

// Standing orders names for the active round.
func (s *Session) Standing() []Standing {
	return RoundStanding(s.state.Hearts, s.state.ActiveRound, s.state.SortByScore)
}

// Rating describes what the active rater has said about name.
func (s *Session) Rating(name string) heart.Rating {
	return RatingFor(s.state.Hearts, name, s.state.ActiveUsername)
}

// Rounds lists the extension rounds available to switch to.
func (s *Session) Rounds() []int { return Rounds(s.state.Hearts) }
