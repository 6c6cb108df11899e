// Package garage is the boundary between a shell and the stores: it
// resolves the logged-in user, turns raw form input into records, applies
// them to the in-memory graph and persists the owning user after every
// successful mutation.
package garage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mygarage/internal/models"
	"mygarage/internal/storage"

	"github.com/sirupsen/logrus"
)

// ErrEmptyUsername is returned by Login for an empty username.
var ErrEmptyUsername = errors.New("username is required")

// Garage coordinates the user store and the session store.
type Garage struct {
	store    *storage.Store
	sessions *storage.SessionStore
	now      func() time.Time
	logger   logrus.FieldLogger
}

// Option configures a Garage.
type Option func(*Garage)

// WithClock overrides the clock used for default dates.
func WithClock(now func() time.Time) Option {
	return func(g *Garage) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(g *Garage) { g.logger = logger }
}

// New creates a Garage over the given stores.
func New(store *storage.Store, sessions *storage.SessionStore, opts ...Option) *Garage {
	g := &Garage{
		store:    store,
		sessions: sessions,
		now:      time.Now,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login resolves username to a stored user, matching case-insensitively.
// An unknown username is registered on the spot with an empty password and
// email. The session is saved under the stored spelling of the username.
func (g *Garage) Login(username string) (*models.User, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}

	users := g.store.LoadAll()
	var active *models.User
	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			active = u
			break
		}
	}

	if active == nil {
		active = models.NewUser(username, "", "")
		users = append(users, active)
		if err := g.store.SaveAll(users); err != nil {
			return nil, fmt.Errorf("register %s: %w", username, err)
		}
		g.logger.WithField("username", username).Info("New user created")
	} else {
		g.logger.WithField("username", active.Username).Info("Welcome back")
	}

	if err := g.sessions.Save(active.Username); err != nil {
		return active, err
	}
	return active, nil
}

// Resume returns the user of the saved session, if it is still stored.
func (g *Garage) Resume() (*models.User, bool) {
	return g.sessions.CurrentUser()
}

// Logout forgets the saved session.
func (g *Garage) Logout() error {
	return g.sessions.Clear()
}

// Persist writes the user back into the store, replacing its previous copy.
func (g *Garage) Persist(user *models.User) error {
	return g.store.Upsert(user)
}

// AddVehicle parks a new vehicle built from form in the user's garage.
func (g *Garage) AddVehicle(user *models.User, form VehicleForm) (*models.Vehicle, error) {
	v, err := form.parse()
	if err != nil {
		return nil, err
	}
	user.AddVehicle(v)
	return v, g.Persist(user)
}

// SetKilometer updates the odometer of v.
func (g *Garage) SetKilometer(user *models.User, v *models.Vehicle, form OdometerForm) error {
	km, err := form.parse()
	if err != nil {
		return err
	}
	v.SetKilometer(km)
	return g.Persist(user)
}

// AddExpense appends an expense to v.
func (g *Garage) AddExpense(user *models.User, v *models.Vehicle, form ExpenseForm) (models.Expense, error) {
	e, err := form.parse(today(g.now))
	if err != nil {
		return models.Expense{}, err
	}
	v.AddExpense(e)
	return e, g.Persist(user)
}

// AddDreamItem appends a planned modification to v's wishlist.
func (g *Garage) AddDreamItem(user *models.User, v *models.Vehicle, form DreamItemForm) (models.DreamItem, error) {
	item, err := form.parse(today(g.now))
	if err != nil {
		return models.DreamItem{}, err
	}
	v.AddDreamItem(item)
	return item, g.Persist(user)
}

// SetDreamItemDone marks the wishlist item at index as done or not done.
func (g *Garage) SetDreamItemDone(user *models.User, v *models.Vehicle, index int, done bool) error {
	if err := v.SetDreamItemDone(index, done); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return g.Persist(user)
}

// AddTrackSession appends a track day to v's log.
func (g *Garage) AddTrackSession(user *models.User, v *models.Vehicle, form TrackSessionForm) (models.TrackSession, error) {
	s, err := form.parse(today(g.now))
	if err != nil {
		return models.TrackSession{}, err
	}
	v.AddTrackSession(s)
	return s, g.Persist(user)
}
