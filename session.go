package wander

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	apierr "github.com/wanderapp/wander-go/internal/errors"
	"github.com/wanderapp/wander-go/internal/serial"
	"github.com/wanderapp/wander-go/internal/types"
)

// sessionKey serializes poll ticks and explicit auth calls on one shard so
// a validation can never interleave with an in-flight sign-in.
const sessionKey = "session"

// authGateway is the slice of the remote gateway the monitor needs.
type authGateway interface {
	GetUser(ctx context.Context) (*types.Session, error)
	SignIn(ctx context.Context, email, password string) (*types.Session, error)
	SignUp(ctx context.Context, email, password, displayName string) (*types.Session, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	UpdateUser(ctx context.Context, metadata map[string]any) error
}

// SessionMonitor owns the authentication session lifecycle. It polls the
// identity provider on a fixed interval and keeps a single current-session
// value eventually consistent with it. Presence transitions (LoggedOut ->
// LoggedIn and the reverse) publish EventSessionChanged; validations that
// confirm the current presence stay silent to avoid UI churn.
type SessionMonitor struct {
	gw       authGateway
	exec     executor
	hub      *Hub
	tokens   *tokenStore
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	current  *types.Session
	lastErr  string
	loading  int
	stopPoll context.CancelFunc

	opInFlight uint32 // explicit auth call running; poll ticks skip
}

func newSessionMonitor(gw authGateway, exec executor, hub *Hub, tokens *tokenStore, interval time.Duration, log zerolog.Logger) *SessionMonitor {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &SessionMonitor{
		gw:       gw,
		exec:     exec,
		hub:      hub,
		tokens:   tokens,
		interval: interval,
		log:      log,
	}
}

// Start performs an immediate validation check and then revalidates on the
// configured interval until Stop. Idempotent: calling Start again cancels
// the previous loop first.
func (m *SessionMonitor) Start() {
	m.mu.Lock()
	if m.stopPoll != nil {
		m.stopPoll()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopPoll = cancel
	m.mu.Unlock()

	go m.pollLoop(ctx)
}

// Stop cancels the recurring validation. Safe to call when not started.
func (m *SessionMonitor) Stop() {
	m.mu.Lock()
	if m.stopPoll != nil {
		m.stopPoll()
		m.stopPoll = nil
	}
	m.mu.Unlock()
}

func (m *SessionMonitor) pollLoop(ctx context.Context) {
	m.validateOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadUint32(&m.opInFlight) == 1 {
				// An explicit sign-in/out is running; skip this tick
				// instead of flapping the session value.
				continue
			}
			m.validateOnce(ctx)
		}
	}
}

// validateOnce asks the identity provider for the current session and
// reconciles the cached value. Any failure is treated as logged-out.
func (m *SessionMonitor) validateOnce(ctx context.Context) {
	err := m.exec.Do(ctx, sessionKey, func(ctx context.Context) error {
		sess, err := m.gw.GetUser(ctx)
		if err != nil {
			return err
		}
		m.setSession(sess, true)
		return nil
	})
	sessionValidationsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		return
	}
	// Cancellation during the inter-poll wait is a clean shutdown, not a
	// state change.
	if errors.Is(err, context.Canceled) || errors.Is(err, serial.ErrExecutorClosed) {
		return
	}
	m.log.Debug().Err(err).Msg("session validation failed, treating as logged out")
	m.clearSession()
}

// Current returns the last-known session, or nil when logged out. The
// returned value is a snapshot; mutating it has no effect.
func (m *SessionMonitor) Current() *types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	snapshot := *m.current
	return &snapshot
}

// UserID returns the identifier of the signed-in user, or "" when logged out.
func (m *SessionMonitor) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.UserID
}

// Err returns the user-facing message of the last failed operation, or "".
func (m *SessionMonitor) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Loading reports whether an auth operation is currently in flight.
func (m *SessionMonitor) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading > 0
}

// SignIn exchanges credentials for a session. The email is normalized
// before it is sent. Known provider errors are translated to user-facing
// messages available via Err.
func (m *SessionMonitor) SignIn(ctx context.Context, email, password string) error {
	if err := types.ValidateCredentials(email, password); err != nil {
		m.fail(err)
		return err
	}
	email = types.NormalizeEmail(email)

	m.begin()
	defer m.end()

	var sess *types.Session
	err := m.exec.Do(ctx, sessionKey, func(ctx context.Context) error {
		var err error
		sess, err = m.gw.SignIn(ctx, email, password)
		return err
	})
	if err != nil {
		m.fail(err)
		return err
	}
	m.tokens.set(sess.Token)
	m.setSession(sess, false)
	return nil
}

// SignUp registers a new account. When the deployment requires email
// confirmation no session is established; Current stays nil until the
// user confirms and signs in.
func (m *SessionMonitor) SignUp(ctx context.Context, email, password, displayName string) error {
	if err := types.ValidateCredentials(email, password); err != nil {
		m.fail(err)
		return err
	}
	email = types.NormalizeEmail(email)

	m.begin()
	defer m.end()

	var sess *types.Session
	err := m.exec.Do(ctx, sessionKey, func(ctx context.Context) error {
		var err error
		sess, err = m.gw.SignUp(ctx, email, password, strings.TrimSpace(displayName))
		return err
	})
	if err != nil {
		m.fail(err)
		return err
	}
	if sess != nil {
		m.tokens.set(sess.Token)
		m.setSession(sess, false)
	}
	return nil
}

// SignOut revokes the session remotely and clears the cached value. If the
// remote call fails the cached session is left in place and an immediate
// out-of-band validation corrects it promptly.
func (m *SessionMonitor) SignOut(ctx context.Context) error {
	m.begin()
	defer m.end()

	err := m.exec.Do(ctx, sessionKey, m.gw.SignOut)
	if err != nil {
		m.fail(err)
		go m.validateOnce(context.Background())
		return err
	}
	m.tokens.set("")
	m.clearSession()
	return nil
}

// ResetPassword asks the provider to send a recovery email.
func (m *SessionMonitor) ResetPassword(ctx context.Context, email string) error {
	email = types.NormalizeEmail(email)
	if email == "" {
		err := apierr.NewValidation("email must not be empty")
		m.fail(err)
		return err
	}

	m.begin()
	defer m.end()

	err := m.exec.Do(ctx, sessionKey, func(ctx context.Context) error {
		return m.gw.ResetPassword(ctx, email)
	})
	if err != nil {
		m.fail(err)
		return err
	}
	return nil
}

// UpdateDisplayName changes the signed-in user's display name. Presence is
// unchanged so no notification fires; the cached session is updated in place.
func (m *SessionMonitor) UpdateDisplayName(ctx context.Context, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		err := apierr.NewValidation("display name must not be empty")
		m.fail(err)
		return err
	}
	if m.Current() == nil {
		err := apierr.NewValidation("not signed in")
		m.fail(err)
		return err
	}

	m.begin()
	defer m.end()

	err := m.exec.Do(ctx, sessionKey, func(ctx context.Context) error {
		return m.gw.UpdateUser(ctx, map[string]any{"display_name": displayName})
	})
	if err != nil {
		m.fail(err)
		return err
	}
	m.mu.Lock()
	if m.current != nil {
		m.current.DisplayName = displayName
	}
	m.mu.Unlock()
	return nil
}

// ------------------------- internals -------------------------

// setSession replaces the cached session and publishes a notification only
// when presence changed. keepToken preserves the stored access token for
// validations, which return the user without a token.
func (m *SessionMonitor) setSession(sess *types.Session, keepToken bool) {
	if sess == nil {
		m.clearSession()
		return
	}
	m.mu.Lock()
	wasPresent := m.current != nil
	if keepToken && m.current != nil && sess.Token == "" {
		sess.Token = m.current.Token
	}
	m.current = sess
	m.mu.Unlock()

	if !wasPresent {
		m.log.Info().Str("user_id", sess.UserID).Msg("session established")
		m.hub.publish(EventSessionChanged)
	}
}

func (m *SessionMonitor) clearSession() {
	m.mu.Lock()
	wasPresent := m.current != nil
	m.current = nil
	m.mu.Unlock()

	m.tokens.set("")
	if wasPresent {
		m.log.Info().Msg("session cleared")
		m.hub.publish(EventSessionChanged)
	}
}

func (m *SessionMonitor) begin() {
	atomic.StoreUint32(&m.opInFlight, 1)
	m.mu.Lock()
	m.lastErr = ""
	m.loading++
	m.mu.Unlock()
}

func (m *SessionMonitor) end() {
	m.mu.Lock()
	m.loading--
	m.mu.Unlock()
	atomic.StoreUint32(&m.opInFlight, 0)
}

func (m *SessionMonitor) fail(err error) {
	msg := translateAuthError(err)
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
	m.log.Debug().Err(err).Str("message", msg).Msg("auth operation failed")
}

// translateAuthError maps known provider error substrings onto user-facing
// messages; anything unrecognized keeps its original text for display.
func translateAuthError(err error) string {
	if err == nil {
		return ""
	}
	raw := err.Error()
	var ce *apierr.ClassifiedError
	if errors.As(err, &ce) && ce.Body != "" {
		raw = ce.Body
	}
	lowered := strings.ToLower(raw)
	switch {
	case strings.Contains(lowered, "invalid login credentials"),
		strings.Contains(lowered, "invalid_grant"):
		return "Incorrect email or password."
	case strings.Contains(lowered, "already registered"),
		strings.Contains(lowered, "already exists"):
		return "An account with this email already exists."
	case strings.Contains(lowered, "email not confirmed"):
		return "Please confirm your email address before signing in."
	case apierr.Is(err, apierr.Transport) && (ce == nil || ce.StatusCode == 0):
		// Network-level failure with no server message to preserve.
		return "Could not reach the server. Check your connection and try again."
	default:
		return raw
	}
}
