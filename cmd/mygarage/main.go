package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"mygarage/internal/config"
	"mygarage/internal/garage"
	"mygarage/internal/models"
	"mygarage/internal/report"
	"mygarage/internal/storage"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var errNotLoggedIn = errors.New("not logged in, run 'mygarage login' first")

const usage = `Usage: mygarage [-db <path>] [-session <path>] [-log-level <level>] <command> [flags]

Commands:
  login         log in, creating the user on first use
  logout        forget the saved session
  whoami        print the logged-in user
  garage        list vehicles
  add-vehicle   park a new vehicle
  set-km        update the odometer
  add-expense   record an expense
  add-dream     add a wishlist item
  toggle-dream  flip a wishlist item's done flag
  add-track     record a track session
  show          print a vehicle's overview and logs
  export        write a vehicle's logs to an .xlsx file
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	garage *garage.Garage
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.Load()

	fs := flag.NewFlagSet("mygarage", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the user store file")
	fs.StringVar(&cfg.SessionPath, "session", cfg.SessionPath, "Path to the session file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("missing command")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(cfg.Level())

	store := storage.NewStore(cfg.DBPath, logger)
	sessions := storage.NewSessionStore(cfg.SessionPath, store, logger)
	a := &app{
		garage: garage.New(store, sessions, garage.WithLogger(logger)),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	commands := map[string]func([]string) error{
		"login":        a.login,
		"logout":       a.logout,
		"whoami":       a.whoami,
		"garage":       a.list,
		"add-vehicle":  a.addVehicle,
		"set-km":       a.setKilometer,
		"add-expense":  a.addExpense,
		"add-dream":    a.addDream,
		"toggle-dream": a.toggleDream,
		"add-track":    a.addTrack,
		"show":         a.show,
		"export":       a.export,
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", name)
	}
	return cmd(rest)
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) login(args []string) error {
	fs := a.flags("login")
	username := fs.String("user", "", "Username (will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	name := *username
	if name == "" {
		var err error
		name, err = a.prompt("Username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}

	user, err := a.garage.Login(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Logged in as %s (%d vehicles)\n", user.Username, len(user.Garage))
	return nil
}

// prompt reads one line from stdin, printing the prompt only for a terminal.
func (a *app) prompt(label string) (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.stdout, label)
	}

	scanner := bufio.NewScanner(a.stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (a *app) logout(args []string) error {
	if err := a.flags("logout").Parse(args); err != nil {
		return err
	}
	if err := a.garage.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Logged out")
	return nil
}

func (a *app) whoami(args []string) error {
	if err := a.flags("whoami").Parse(args); err != nil {
		return err
	}
	user, err := a.currentUser()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, user.Username)
	return nil
}

func (a *app) currentUser() (*models.User, error) {
	user, ok := a.garage.Resume()
	if !ok {
		return nil, errNotLoggedIn
	}
	return user, nil
}

// vehicle resolves ref in the user's garage. An empty ref selects the only
// vehicle when there is exactly one.
func (a *app) vehicle(user *models.User, ref string) (*models.Vehicle, error) {
	if ref == "" {
		if len(user.Garage) == 1 {
			return user.Garage[0], nil
		}
		return nil, fmt.Errorf("missing required flag: vehicle (garage has %d vehicles)", len(user.Garage))
	}
	v, ok := user.FindVehicle(ref)
	if !ok {
		return nil, fmt.Errorf("no vehicle matches %q", ref)
	}
	return v, nil
}

func (a *app) list(args []string) error {
	if err := a.flags("garage").Parse(args); err != nil {
		return err
	}
	user, err := a.currentUser()
	if err != nil {
		return err
	}
	if len(user.Garage) == 0 {
		fmt.Fprintln(a.stdout, "Garage is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tVEHICLE\tID\tKM")
	for i, v := range user.Garage {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", i+1, v.DisplayName(), shortID(v.ID), v.Kilometer)
	}
	return tw.Flush()
}

func (a *app) addVehicle(args []string) error {
	fs := a.flags("add-vehicle")
	var form garage.VehicleForm
	fs.StringVar(&form.Brand, "brand", "", "Brand (e.g. BMW)")
	fs.StringVar(&form.Model, "model", "", "Model (e.g. 320i)")
	fs.StringVar(&form.Generation, "gen", "", "Generation (e.g. F30)")
	fs.StringVar(&form.Year, "year", "", "Year (e.g. 2016)")
	fs.StringVar(&form.Color, "color", "", "Color (e.g. Estoril Blue)")
	fs.StringVar(&form.Kilometer, "km", "", "Odometer in km")
	fs.StringVar(&form.Power, "hp", "", "Power in HP")
	fs.StringVar(&form.Torque, "nm", "", "Torque in Nm")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	v, err := a.garage.AddVehicle(user, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Parked %s (id %s)\n", v.DisplayName(), shortID(v.ID))
	return nil
}

func (a *app) setKilometer(args []string) error {
	fs := a.flags("set-km")
	ref := fs.String("vehicle", "", "Vehicle ID, ID prefix or list number")
	var form garage.OdometerForm
	fs.StringVar(&form.Kilometer, "km", "", "New odometer reading")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	v, err := a.vehicle(user, *ref)
	if err != nil {
		return err
	}
	if err := a.garage.SetKilometer(user, v, form); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Odometer of %s is now %d km\n", v.DisplayName(), v.Kilometer)
	return nil
}

func (a *app) addExpense(args []string) error {
	fs := a.flags("add-expense")
	ref := fs.String("vehicle", "", "Vehicle ID, ID prefix or list number")
	var form garage.ExpenseForm
	fs.StringVar(&form.Category, "category", "", "Category (default FUEL)")
	fs.StringVar(&form.Amount, "amount", "", "Amount")
	fs.StringVar(&form.Currency, "currency", "", "Currency (default TL)")
	fs.StringVar(&form.Description, "desc", "", "Description (e.g. Shell V-Power)")
	fs.StringVar(&form.Date, "date", "", "Date YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	v, err := a.vehicle(user, *ref)
	if err != nil {
		return err
	}
	e, err := a.garage.AddExpense(user, v, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Recorded %s %s %s on %s\n", e.Category, e.Amount.StringFixed(2), e.Currency, e.Date)
	return nil
}

func (a *app) addDream(args []string) error {
	fs := a.flags("add-dream")
	ref := fs.String("vehicle", "", "Vehicle ID, ID prefix or list number")
	var form garage.DreamItemForm
	fs.StringVar(&form.Category, "category", "", "Category (default WHEELS)")
	fs.StringVar(&form.Description, "desc", "", "Part detail (e.g. BBS RI-A)")
	fs.StringVar(&form.EstimatedCost, "cost", "", "Estimated price")
	fs.StringVar(&form.Currency, "currency", "", "Currency (default TL)")
	fs.StringVar(&form.PlannedDate, "date", "", "Planned date YYYY-MM-DD (default in one month)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	v, err := a.vehicle(user, *ref)
	if err != nil {
		return err
	}
	item, err := a.garage.AddDreamItem(user, v, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Added %s to the dream spec (#%d)\n", item.Description, len(v.DreamList))
	return nil
}

func (a *app) toggleDream(args []string) error {
	fs := a.flags("toggle-dream")
	ref := fs.String("vehicle", "", "Vehicle ID, ID prefix or list number")
	item := fs.Int("item", 0, "Wishlist item number as shown by 'show'")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	v, err := a.vehicle(user, *ref)
	if err != nil {
		return err
	}
	index := *item - 1
	done := index >= 0 && index < len(v.DreamList) && !v.DreamList[index].Done
	if err := a.garage.SetDreamItemDone(user, v, index, done); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s marked %s\n", v.DreamList[index].Description, doneLabel(done))
	return nil
}

func (a *app) addTrack(args []string) error {
	fs := a.flags("add-track")
	ref := fs.String("vehicle", "", "Vehicle ID, ID prefix or list number")
	var form garage.TrackSessionForm
	fs.StringVar(&form.TrackName, "track", "", "Track name (e.g. Istanbul Park)")
	fs.StringVar(&form.LapTime, "lap", "", "Best lap (e.g. 2:15.450)")
	fs.StringVar(&form.Date, "date", "", "Date YYYY-MM-DD (default today)")
	fs.StringVar(&form.Conditions, "conditions", "", "Conditions: Dry, Wet, Damp, Night (default Dry)")
	fs.StringVar(&form.Tires, "tires", "", "Tires (e.g. Michelin Cup 2)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	v, err := a.vehicle(user, *ref)
	if err != nil {
		return err
	}
	s, err := a.garage.AddTrackSession(user, v, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Recorded %s at %s (%d sessions)\n", s.LapTime, s.TrackName, len(v.TrackLog))
	return nil
}

func (a *app) show(args []string) error {
	fs := a.flags("show")
	ref := fs.String("vehicle", "", "Vehicle ID, ID prefix or list number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	v, err := a.vehicle(user, *ref)
	if err != nil {
		return err
	}

	s := garage.Summarize(v)
	w := a.stdout
	fmt.Fprintf(w, "%s's %s %s\n", user.Username, v.Brand, v.Model)
	fmt.Fprintf(w, "%s | %s | %s\n\n", v.Year, v.Generation, v.Color)
	fmt.Fprintf(w, "Power / Torque:  %d HP / %d Nm\n", v.Power, v.Torque)
	fmt.Fprintf(w, "Odometer:        %d km\n", v.Kilometer)
	fmt.Fprintf(w, "Total Expenses:  %s\n", formatTotals(s.Expenses))
	fmt.Fprintf(w, "Dream Spec Cost: %s\n", formatTotals(s.DreamCost))
	fmt.Fprintf(w, "Project Completion: %d%% (%d/%d)\n", s.DreamProgress, s.DreamDone, s.DreamTotal)
	fmt.Fprintf(w, "Total Track Days: %d Sessions\n", s.TrackDayCount)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nEXPENSES")
	if len(v.Expenses) == 0 {
		fmt.Fprintln(tw, "No expenses recorded.")
	}
	for _, e := range v.Expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\n", e.Date, e.Category, e.Amount.StringFixed(2), e.Currency, e.Description)
	}
	for _, c := range s.Categories {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", c.Category, c.Count, c.Total.StringFixed(2))
	}

	fmt.Fprintln(tw, "\nDREAM SPEC")
	if len(v.DreamList) == 0 {
		fmt.Fprintln(tw, "Start dreaming... Add your first mod!")
	}
	for i, d := range v.DreamList {
		mark := " "
		if d.Done {
			mark = "x"
		}
		fmt.Fprintf(tw, "%d [%s]\t%s\t%s\t%s %s\t%s\n", i+1, mark, d.Category, d.Description,
			d.EstimatedCost.StringFixed(2), d.Currency, d.PlannedDate)
	}

	fmt.Fprintln(tw, "\nTRACK DAYS")
	if len(v.TrackLog) == 0 {
		fmt.Fprintln(tw, "No track days recorded. Get out there!")
	}
	for _, t := range v.TrackLog {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.Date, t.TrackName, t.LapTime, t.Conditions, t.Tires)
	}
	return tw.Flush()
}

func (a *app) export(args []string) error {
	fs := a.flags("export")
	ref := fs.String("vehicle", "", "Vehicle ID, ID prefix or list number")
	out := fs.String("out", "", "Output .xlsx path (default <brand>-<model>.xlsx)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	v, err := a.vehicle(user, *ref)
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = strings.ToLower(strings.ReplaceAll(v.Brand+"-"+v.Model, " ", "-")) + ".xlsx"
	}
	if err := report.SaveVehicleXLSX(path, user, v); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Exported %s to %s\n", v.DisplayName(), path)
	return nil
}

func formatTotals(totals []garage.CurrencyTotal) string {
	if len(totals) == 0 {
		return "0.00"
	}
	parts := make([]string, len(totals))
	for i, t := range totals {
		parts[i] = t.Total.StringFixed(2) + " " + t.Currency
	}
	return strings.Join(parts, ", ")
}

func doneLabel(done bool) string {
	if done {
		return "done"
	}
	return "not done"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
