package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mygarage/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// StoreTestSuite provides a test suite for user store operations
type StoreTestSuite struct {
	suite.Suite
	dir   string
	store *Store
	hook  *test.Hook
}

// SetupTest runs before each test
func (suite *StoreTestSuite) SetupTest() {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	suite.hook = hook
	suite.dir = suite.T().TempDir()
	suite.store = NewStore(filepath.Join(suite.dir, "mygarage.db"), logger)
}

func (suite *StoreTestSuite) TestLoadMissingFileIsEmpty() {
	users, err := suite.store.Load()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), users)
	assert.Empty(suite.T(), users)
	assert.NoFileExists(suite.T(), suite.store.Path(), "loading must not create the store")
}

func (suite *StoreTestSuite) TestRoundTrip() {
	cases := map[string][]*models.User{
		"no users":  {},
		"one user":  {models.NewUser("alice", "", "")},
		"many users": sampleUsers(),
	}

	for name, users := range cases {
		suite.Run(name, func() {
			require.NoError(suite.T(), suite.store.SaveAll(users))

			loaded, err := suite.store.Load()
			require.NoError(suite.T(), err)
			requireUsersEqual(suite.T(), users, loaded)
		})
	}
}

func (suite *StoreTestSuite) TestRoundTripKeepsEmptyLogsNonNil() {
	u := models.NewUser("carol", "pw", "carol@example.com")
	u.AddVehicle(models.NewVehicle("Mazda", "MX-5", "ND", "2018", "Soul Red", 30000, 160, 200))
	require.NoError(suite.T(), suite.store.SaveAll([]*models.User{u}))

	loaded := suite.store.LoadAll()
	require.Len(suite.T(), loaded, 1)
	require.Len(suite.T(), loaded[0].Garage, 1)
	v := loaded[0].Garage[0]
	assert.NotNil(suite.T(), v.Expenses)
	assert.NotNil(suite.T(), v.DreamList)
	assert.NotNil(suite.T(), v.TrackLog)
}

func (suite *StoreTestSuite) TestSaveAllReplacesWholeStore() {
	require.NoError(suite.T(), suite.store.SaveAll(sampleUsers()))
	require.NoError(suite.T(), suite.store.SaveAll([]*models.User{models.NewUser("dave", "", "")}))

	loaded := suite.store.LoadAll()
	require.Len(suite.T(), loaded, 1)
	assert.Equal(suite.T(), "dave", loaded[0].Username)

	entries, err := os.ReadDir(suite.dir)
	require.NoError(suite.T(), err)
	for _, e := range entries {
		assert.NotContains(suite.T(), e.Name(), ".tmp", "temporary snapshot left behind")
	}
}

func (suite *StoreTestSuite) TestCorruptedFileLoadsEmpty() {
	require.NoError(suite.T(), os.WriteFile(suite.store.Path(), []byte("definitely not a garage"), 0644))

	_, err := suite.store.Load()
	assert.ErrorIs(suite.T(), err, ErrStoreUnreadable)

	users := suite.store.LoadAll()
	assert.Empty(suite.T(), users)

	entry := suite.hook.LastEntry()
	require.NotNil(suite.T(), entry)
	assert.Equal(suite.T(), logrus.ErrorLevel, entry.Level)
}

func (suite *StoreTestSuite) TestCorruptedFileCanBeOverwritten() {
	require.NoError(suite.T(), os.WriteFile(suite.store.Path(), []byte("garbage"), 0644))

	require.NoError(suite.T(), suite.store.SaveAll(sampleUsers()))
	loaded, err := suite.store.Load()
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), loaded, 2)
}

func (suite *StoreTestSuite) TestFutureSchemaIsUnreadable() {
	require.NoError(suite.T(), suite.store.SaveAll(sampleUsers()))

	conn, err := openDB(suite.store.Path())
	require.NoError(suite.T(), err)
	_, err = conn.Exec("UPDATE schema_migrations SET version = version + 1")
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), conn.Close())

	_, err = suite.store.Load()
	assert.ErrorIs(suite.T(), err, ErrStoreUnreadable)
	assert.ErrorIs(suite.T(), err, ErrIncompatibleSchema)
}

func (suite *StoreTestSuite) TestUnwritableLeavesPriorContent() {
	require.NoError(suite.T(), suite.store.SaveAll(sampleUsers()))

	blocked := NewStore(filepath.Join(suite.store.Path(), "nested.db"), nil)
	err := blocked.SaveAll([]*models.User{models.NewUser("eve", "", "")})
	assert.ErrorIs(suite.T(), err, ErrStoreUnwritable)

	loaded, err := suite.store.Load()
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), loaded, 2)
}

func (suite *StoreTestSuite) TestUpsert() {
	require.NoError(suite.T(), suite.store.SaveAll(sampleUsers()))

	alice := suite.store.LoadAll()[0]
	alice.Email = "alice@example.com"
	require.NoError(suite.T(), suite.store.Upsert(alice))

	frank := models.NewUser("frank", "", "")
	require.NoError(suite.T(), suite.store.Upsert(frank))

	loaded := suite.store.LoadAll()
	require.Len(suite.T(), loaded, 3)
	assert.Equal(suite.T(), "alice@example.com", loaded[0].Email)
	assert.Len(suite.T(), loaded[0].Garage, 2, "upsert keeps the garage")
	assert.Equal(suite.T(), "bob", loaded[1].Username)
	assert.Equal(suite.T(), "frank", loaded[2].Username)
}

func (suite *StoreTestSuite) TestUpsertMatchesUsernameExactly() {
	require.NoError(suite.T(), suite.store.SaveAll([]*models.User{models.NewUser("Alice", "", "")}))
	require.NoError(suite.T(), suite.store.Upsert(models.NewUser("alice", "", "")))

	loaded := suite.store.LoadAll()
	assert.Len(suite.T(), loaded, 2)
}

// Test suite runners
func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestSchemaVersion(t *testing.T) {
	v, err := SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}

func sampleUsers() []*models.User {
	alice := models.NewUser("alice", "secret", "")
	m3 := models.NewVehicle("BMW", "M3", "E46", "2004", "Phoenix Yellow", 98000, 343, 365)
	m3.AddExpense(models.Expense{
		Category:    models.ExpenseFuel,
		Amount:      decimal.RequireFromString("50.0"),
		Currency:    "TL",
		Description: "Shell V-Power",
		Date:        models.NewDate(2024, time.January, 5),
	})
	m3.AddExpense(models.Expense{
		Category:    models.ExpenseMaintenance,
		Amount:      decimal.RequireFromString("1249.99"),
		Currency:    "EUR",
		Description: "Rod bearings",
		Date:        models.NewDate(2024, time.February, 29),
	})
	m3.AddDreamItem(models.DreamItem{
		Category:      models.DreamWheels,
		Description:   "BBS LM",
		EstimatedCost: decimal.RequireFromString("4200"),
		Currency:      "USD",
		PlannedDate:   models.NewDate(2024, time.June, 1),
		Done:          true,
	})
	m3.AddTrackSession(models.TrackSession{
		TrackName:  "Istanbul Park",
		LapTime:    "2:15.450",
		Date:       models.NewDate(2024, time.May, 12),
		Conditions: models.ConditionsDry,
		Tires:      "Michelin Cup 2",
	})
	alice.AddVehicle(m3)
	alice.AddVehicle(models.NewVehicle("Fiat", "Panda", "", "", "", 0, 0, 0))

	bob := models.NewUser("bob", "", "bob@example.com")
	return []*models.User{alice, bob}
}

func requireUsersEqual(t *testing.T, want, got []*models.User) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.Username, g.Username)
		assert.Equal(t, w.Password, g.Password)
		assert.Equal(t, w.Email, g.Email)
		require.Len(t, g.Garage, len(w.Garage), "garage of %s", w.Username)
		for j := range w.Garage {
			requireVehicleEqual(t, w.Garage[j], g.Garage[j])
		}
	}
}

func requireVehicleEqual(t *testing.T, want, got *models.Vehicle) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Brand, got.Brand)
	assert.Equal(t, want.Model, got.Model)
	assert.Equal(t, want.Generation, got.Generation)
	assert.Equal(t, want.Year, got.Year)
	assert.Equal(t, want.Color, got.Color)
	assert.Equal(t, want.Kilometer, got.Kilometer)
	assert.Equal(t, want.Power, got.Power)
	assert.Equal(t, want.Torque, got.Torque)

	require.Len(t, got.Expenses, len(want.Expenses))
	for i, e := range want.Expenses {
		g := got.Expenses[i]
		assert.Equal(t, e.Category, g.Category)
		assert.True(t, e.Amount.Equal(g.Amount), "amount %s != %s", e.Amount, g.Amount)
		assert.Equal(t, e.Currency, g.Currency)
		assert.Equal(t, e.Description, g.Description)
		assert.Equal(t, e.Date.String(), g.Date.String())
	}

	require.Len(t, got.DreamList, len(want.DreamList))
	for i, d := range want.DreamList {
		g := got.DreamList[i]
		assert.Equal(t, d.Category, g.Category)
		assert.Equal(t, d.Description, g.Description)
		assert.True(t, d.EstimatedCost.Equal(g.EstimatedCost), "cost %s != %s", d.EstimatedCost, g.EstimatedCost)
		assert.Equal(t, d.Currency, g.Currency)
		assert.Equal(t, d.PlannedDate.String(), g.PlannedDate.String())
		assert.Equal(t, d.Done, g.Done)
	}

	assert.Equal(t, want.TrackLog, got.TrackLog)
}
