package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrDreamItemNotFound is returned when a wishlist index is out of range.
var ErrDreamItemNotFound = errors.New("dream item not found")

// Vehicle is a car in a user's garage together with its logs.
//
// The three logs are never nil: NewVehicle and the store both initialize
// them, so callers can range over them directly.
type Vehicle struct {
	ID         string `json:"id"`
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Generation string `json:"generation"` // chassis code, e.g. F30
	Year       string `json:"year"`
	Color      string `json:"color"`
	Kilometer  int    `json:"kilometer"`
	Power      int    `json:"power"`  // HP
	Torque     int    `json:"torque"` // Nm

	Expenses  []Expense      `json:"expenses"`
	DreamList []DreamItem    `json:"dream_list"`
	TrackLog  []TrackSession `json:"track_log"`
}

// NewVehicle creates a vehicle with a fresh random ID and empty logs.
func NewVehicle(brand, model, generation, year, color string, kilometer, power, torque int) *Vehicle {
	return &Vehicle{
		ID:         uuid.NewString(),
		Brand:      brand,
		Model:      model,
		Generation: generation,
		Year:       year,
		Color:      color,
		Kilometer:  kilometer,
		Power:      power,
		Torque:     torque,
		Expenses:   []Expense{},
		DreamList:  []DreamItem{},
		TrackLog:   []TrackSession{},
	}
}

// DisplayName formats the vehicle as "2016 BMW 320i (F30)".
func (v *Vehicle) DisplayName() string {
	return v.Year + " " + v.Brand + " " + v.Model + " (" + v.Generation + ")"
}

// SetKilometer updates the odometer reading.
func (v *Vehicle) SetKilometer(km int) {
	v.Kilometer = km
}

// AddExpense appends e to the expense log.
func (v *Vehicle) AddExpense(e Expense) {
	v.Expenses = append(v.Expenses, e)
}

// AddDreamItem appends item to the wishlist.
func (v *Vehicle) AddDreamItem(item DreamItem) {
	v.DreamList = append(v.DreamList, item)
}

// AddTrackSession appends s to the track log.
func (v *Vehicle) AddTrackSession(s TrackSession) {
	v.TrackLog = append(v.TrackLog, s)
}

// SetDreamItemDone sets the completion flag of the wishlist item at index.
func (v *Vehicle) SetDreamItemDone(index int, done bool) error {
	if index < 0 || index >= len(v.DreamList) {
		return fmt.Errorf("%w: index %d of %d", ErrDreamItemNotFound, index, len(v.DreamList))
	}
	v.DreamList[index].Done = done
	return nil
}

// User owns a garage of vehicles.
type User struct {
	Username string     `json:"username"`
	Password string     `json:"-"` // plain text, may be empty
	Email    string     `json:"email,omitempty"`
	Garage   []*Vehicle `json:"garage"`
}

// NewUser creates a user with an empty garage.
func NewUser(username, password, email string) *User {
	return &User{
		Username: username,
		Password: password,
		Email:    email,
		Garage:   []*Vehicle{},
	}
}

// AddVehicle parks v in the user's garage.
func (u *User) AddVehicle(v *Vehicle) {
	u.Garage = append(u.Garage, v)
}

// FindVehicle resolves ref to a vehicle. ref may be a full ID, a unique ID
// prefix, or a 1-based position in the garage.
func (u *User) FindVehicle(ref string) (*Vehicle, bool) {
	if ref == "" {
		return nil, false
	}
	for _, v := range u.Garage {
		if v.ID == ref {
			return v, true
		}
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(u.Garage) {
			return u.Garage[n-1], true
		}
		return nil, false
	}
	var match *Vehicle
	for _, v := range u.Garage {
		if strings.HasPrefix(v.ID, ref) {
			if match != nil {
				return nil, false
			}
			match = v
		}
	}
	return match, match != nil
}
