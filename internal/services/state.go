package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-pedidos/auth"
	"github.com/diewo77/go-pedidos/internal/models"
	"github.com/diewo77/go-pedidos/internal/store"
	"github.com/diewo77/go-pedidos/result"
)

// configKeySession holds the bearer token so a restart while offline keeps
// the session.
const configKeySession = "session"

// AppState is the session-scoped state shared by the services: the bearer
// token, the current user and the selected advisor and company. Every
// change is written through to the store.
type AppState struct {
	st  *store.Store
	log logrus.FieldLogger
	now func() time.Time

	mu       sync.RWMutex
	session  *auth.Session
	advisor  *models.Advisor
	company  *models.Company
	onLogout []func()
}

func NewAppState(st *store.Store, log logrus.FieldLogger) *AppState {
	return &AppState{st: st, log: log.WithField("module", "state"), now: time.Now}
}

// Restore reloads the persisted session and selections.
func (s *AppState) Restore(ctx context.Context) error {
	var token string
	found, err := s.st.ConfigValue(ctx, configKeySession, &token)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	var adv models.Advisor
	hasAdv, err := s.st.ConfigValue(ctx, models.ConfigKeyAdvisor, &adv)
	if err != nil {
		return fmt.Errorf("restore advisor: %w", err)
	}
	var comp models.Company
	hasComp, err := s.st.ConfigValue(ctx, models.ConfigKeyCompany, &comp)
	if err != nil {
		return fmt.Errorf("restore company: %w", err)
	}
	if hasComp {
		// counters may have moved since the selection was stored
		if fresh, err := s.st.Company(ctx, comp.CompanyID); err == nil {
			comp = fresh
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if found {
		if sess, err := auth.ParseToken(token); err == nil {
			s.session = &sess
		}
	}
	if hasAdv {
		s.advisor = &adv
	}
	if hasComp {
		s.company = &comp
	}
	return nil
}

// Login starts a session with a token issued by the remote service.
func (s *AppState) Login(ctx context.Context, token string) (auth.Session, error) {
	sess, err := auth.ParseToken(token)
	if err != nil {
		return auth.Session{}, err
	}
	if sess.Expired(s.now()) {
		return auth.Session{}, result.HTTP(401, "token expired")
	}
	user := models.SessionUser{Username: sess.Subject, ExpiresAt: sess.ExpiresAt, LoginAt: s.now()}
	if user.Username == "" {
		user.Username = "anonymous"
	}
	if err := s.st.SaveCurrentUser(ctx, user); err != nil {
		return auth.Session{}, result.LocalStorage(err)
	}
	if err := s.st.SetConfig(ctx, configKeySession, sess.Token); err != nil {
		return auth.Session{}, result.LocalStorage(err)
	}
	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()
	s.log.WithField("user", user.Username).Info("session started")
	return sess, nil
}

// Logout tears the session down. Master data, selections and queued local
// orders are kept.
func (s *AppState) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.session = nil
	hooks := append([]func(){}, s.onLogout...)
	s.mu.Unlock()

	err := errors.Join(
		s.st.ClearSession(ctx),
		s.st.DeleteConfig(ctx, configKeySession),
	)
	for _, fn := range hooks {
		fn()
	}
	if err != nil {
		return result.LocalStorage(err)
	}
	s.log.Info("session closed")
	return nil
}

// ExpireOn logs out when err is a 401 and reports whether it did.
func (s *AppState) ExpireOn(ctx context.Context, err error) bool {
	if err == nil || !result.IsUnauthorized(err) {
		return false
	}
	if lerr := s.Logout(ctx); lerr != nil {
		s.log.WithError(lerr).Error("logout after expired session")
	}
	return true
}

// OnLogout registers fn to run after every logout.
func (s *AppState) OnLogout(fn func()) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

// Token returns the bearer token, or "" without a session.
func (s *AppState) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

func (s *AppState) Session() (auth.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return auth.Session{}, false
	}
	return *s.session, true
}

// User is the name stamped on created and updated rows.
func (s *AppState) User() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Subject
}

func (s *AppState) SelectAdvisor(ctx context.Context, a models.Advisor) error {
	if err := s.st.SetConfig(ctx, models.ConfigKeyAdvisor, a); err != nil {
		return result.LocalStorage(err)
	}
	s.mu.Lock()
	s.advisor = &a
	s.mu.Unlock()
	return nil
}

func (s *AppState) Advisor() (models.Advisor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.advisor == nil {
		return models.Advisor{}, false
	}
	return *s.advisor, true
}

func (s *AppState) SelectCompany(ctx context.Context, c models.Company) error {
	if err := s.st.SetConfig(ctx, models.ConfigKeyCompany, c); err != nil {
		return result.LocalStorage(err)
	}
	s.mu.Lock()
	s.company = &c
	s.mu.Unlock()
	return nil
}

func (s *AppState) Company() (models.Company, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.company == nil {
		return models.Company{}, false
	}
	return *s.company, true
}

// RefreshCompany updates the selected company from freshly stored rows.
func (s *AppState) RefreshCompany(ctx context.Context, companies []models.Company) {
	cur, ok := s.Company()
	if !ok {
		return
	}
	for _, c := range companies {
		if c.CompanyID == cur.CompanyID {
			if err := s.SelectCompany(ctx, c); err != nil {
				s.log.WithError(err).Warn("refresh selected company")
			}
			return
		}
	}
}
