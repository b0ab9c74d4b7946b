package session

import (
	"net/http"
	"time"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// Status is the result of Verify.
type Status struct {
	IsAuth bool
	UserID string
}

// Renewal is a freshly signed token the caller still has to write.
type Renewal struct {
	Token   string
	Expires time.Time
}

// Manager reads and writes the session cookie.
type Manager struct {
	codec  *Codec
	secure bool
}

// NewManager creates a Manager. secure marks cookies Secure, which is what
// production deployments want.
func NewManager(codec *Codec, secure bool) *Manager {
	return &Manager{codec: codec, secure: secure}
}

// Cookie builds the session cookie with the attributes every writer uses.
func (m *Manager) Cookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Create issues a token for userID and sets it on w.
func (m *Manager) Create(w http.ResponseWriter, userID string) error {
	expires := m.codec.now().Add(TTL)
	token, err := m.codec.Encrypt(Payload{UserID: userID, ExpiresAt: expires})
	if err != nil {
		return err
	}
	http.SetCookie(w, m.Cookie(token, expires))
	return nil
}

// Decode returns the payload of the request's session cookie, if valid.
func (m *Manager) Decode(r *http.Request) (Payload, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Payload{}, false
	}
	return m.codec.Decrypt(c.Value)
}

// Verify reports whether r carries a valid session. It never writes.
func (m *Manager) Verify(r *http.Request) Status {
	p, ok := m.Decode(r)
	if !ok {
		return Status{}
	}
	return Status{IsAuth: true, UserID: p.UserID}
}

// Update re-signs a valid session with a renewed expiry. It returns nil
// when r has no valid session. The renewed token is not written.
func (m *Manager) Update(r *http.Request) (*Renewal, error) {
	p, ok := m.Decode(r)
	if !ok {
		return nil, nil
	}
	expires := m.codec.now().Add(TTL)
	token, err := m.codec.Encrypt(Payload{UserID: p.UserID, ExpiresAt: expires})
	if err != nil {
		return nil, err
	}
	return &Renewal{Token: token, Expires: expires}, nil
}

// Delete removes the session cookie.
func (m *Manager) Delete(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
