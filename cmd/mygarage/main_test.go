package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type cli struct {
	t       *testing.T
	dir     string
	db      string
	session string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	return &cli{
		t:       t,
		dir:     dir,
		db:      filepath.Join(dir, "garage.db"),
		session: filepath.Join(dir, "session.txt"),
	}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	full := append([]string{"-db", c.db, "-session", c.session}, args...)
	err := run(full, bytes.NewBufferString(stdin), stdout, stderr)
	return stdout.String(), err
}

func (c *cli) mustRun(args ...string) string {
	out, err := c.run("", args...)
	require.NoError(c.t, err, "mygarage %s", strings.Join(args, " "))
	return out
}

func TestRun_MissingCommand(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing command")
	assert.Contains(t, out, "Usage:")
}

func TestRun_UnknownCommand(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "fly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "fly"`)
}

func TestRun_InvalidConfig(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "-log-level", "chatty", "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level 'chatty'")
}

func TestRun_LoginWithFlag(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("login", "-user", "bob")
	assert.Contains(t, out, "Logged in as bob (0 vehicles)")

	_, err := os.Stat(c.db)
	require.NoError(t, err, "store should be created on registration")

	out = c.mustRun("whoami")
	assert.Equal(t, "bob\n", out)
}

func TestRun_LoginPrompt(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("alice\n", "login")
	require.NoError(t, err)
	// Not a terminal, so no prompt is printed.
	assert.NotContains(t, out, "Username: ")
	assert.Contains(t, out, "Logged in as alice")
}

func TestRun_LoginNoInput(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read username")
}

func TestRun_LoginCaseInsensitive(t *testing.T) {
	c := newCLI(t)
	c.mustRun("login", "-user", "Bob")
	c.mustRun("logout")

	out := c.mustRun("login", "-user", "BOB")
	assert.Contains(t, out, "Logged in as Bob")
	assert.Equal(t, "Bob\n", c.mustRun("whoami"))
}

func TestRun_RequiresSession(t *testing.T) {
	c := newCLI(t)
	for _, cmd := range []string{"whoami", "garage", "add-vehicle", "show", "export"} {
		_, err := c.run("", cmd)
		require.Error(t, err, cmd)
		assert.ErrorIs(t, err, errNotLoggedIn, cmd)
	}
}

func TestRun_Logout(t *testing.T) {
	c := newCLI(t)
	c.mustRun("login", "-user", "bob")
	assert.Contains(t, c.mustRun("logout"), "Logged out")

	_, err := c.run("", "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)

	// Logging out twice is fine.
	c.mustRun("logout")
}

func TestRun_GarageWorkflow(t *testing.T) {
	c := newCLI(t)
	c.mustRun("login", "-user", "bob")
	assert.Contains(t, c.mustRun("garage"), "Garage is empty.")

	out := c.mustRun("add-vehicle", "-brand", "BMW", "-model", "320i", "-gen", "F30", "-year", "2016", "-km", "120000")
	assert.Contains(t, out, "Parked 2016 BMW 320i (F30)")

	out = c.mustRun("garage")
	assert.Contains(t, out, "2016 BMW 320i (F30)")
	assert.Contains(t, out, "120000")

	// The only vehicle is selected without -vehicle.
	out = c.mustRun("add-expense", "-amount", "1500,50", "-desc", "Shell V-Power", "-date", "2024-03-01")
	assert.Contains(t, out, "Recorded FUEL 1500.50 TL on 2024-03-01")

	out = c.mustRun("add-dream", "-vehicle", "1", "-desc", "BBS RI-A", "-cost", "2000", "-currency", "EUR")
	assert.Contains(t, out, "Added BBS RI-A to the dream spec (#1)")

	out = c.mustRun("toggle-dream", "-item", "1")
	assert.Contains(t, out, "BBS RI-A marked done")

	out = c.mustRun("add-track", "-track", "Istanbul Park", "-lap", "2:15.450", "-tires", "Cup 2")
	assert.Contains(t, out, "Recorded 2:15.450 at Istanbul Park (1 sessions)")

	out = c.mustRun("set-km", "-km", "121000")
	assert.Contains(t, out, "is now 121000 km")

	out = c.mustRun("show")
	assert.Contains(t, out, "bob's BMW 320i")
	assert.Contains(t, out, "Odometer:        121000 km")
	assert.Contains(t, out, "Total Expenses:  1500.50 TL")
	assert.Contains(t, out, "Dream Spec Cost: 2000.00 EUR")
	assert.Contains(t, out, "Project Completion: 100% (1/1)")
	assert.Contains(t, out, "Total Track Days: 1 Sessions")
	assert.Contains(t, out, "Shell V-Power")
	assert.Contains(t, out, "Dry")

	// Toggling again flips it back.
	out = c.mustRun("toggle-dream", "-item", "1")
	assert.Contains(t, out, "marked not done")
}

func TestRun_VehicleSelection(t *testing.T) {
	c := newCLI(t)
	c.mustRun("login", "-user", "bob")
	c.mustRun("add-vehicle", "-brand", "BMW", "-model", "320i")
	c.mustRun("add-vehicle", "-brand", "Honda", "-model", "S2000")

	_, err := c.run("", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required flag: vehicle")

	_, err = c.run("", "show", "-vehicle", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no vehicle matches "7"`)

	out := c.mustRun("show", "-vehicle", "2")
	assert.Contains(t, out, "bob's Honda S2000")
}

func TestRun_ValidationError(t *testing.T) {
	c := newCLI(t)
	c.mustRun("login", "-user", "bob")

	_, err := c.run("", "add-vehicle", "-brand", "BMW")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is required")

	c.mustRun("add-vehicle", "-brand", "BMW", "-model", "320i")
	_, err = c.run("", "add-expense", "-amount", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount must be a number")

	_, err = c.run("", "toggle-dream", "-item", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	out := c.mustRun("show")
	assert.Contains(t, out, "No expenses recorded.")
}

func TestRun_Export(t *testing.T) {
	c := newCLI(t)
	c.mustRun("login", "-user", "bob")
	c.mustRun("add-vehicle", "-brand", "BMW", "-model", "320i")
	c.mustRun("add-expense", "-amount", "100", "-category", "maintenance")

	path := filepath.Join(c.dir, "bmw.xlsx")
	out := c.mustRun("export", "-out", path)
	assert.Contains(t, out, "BMW 320i ()")
	assert.Contains(t, out, " to "+path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	category, err := f.GetCellValue("Expenses", "B2")
	require.NoError(t, err)
	assert.Equal(t, "MAINTENANCE", category)
}

func TestRun_HelpFlag(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "login", "-h")
	require.Error(t, err)
	assert.Equal(t, "flag: help requested", err.Error())
}
