// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Claim represents a single insurance claim submitted for fraud scoring.
// All fields are categorical strings drawn from small fixed enumerations.
// Values outside the enumerations are tolerated and treated as unknown by
// the scoring pipeline, never rejected.
type Claim struct {
	Month             string `json:"Month"`
	DayOfWeek         string `json:"DayOfWeek"`
	Make              string `json:"Make"`
	AccidentArea      string `json:"AccidentArea"`
	Sex               string `json:"Sex"`
	MaritalStatus     string `json:"MaritalStatus"`
	PolicyType        string `json:"PolicyType"`
	VehiclePrice      string `json:"VehiclePrice"`
	AgeOfVehicle      string `json:"AgeOfVehicle"`
	AgeOfPolicyHolder string `json:"AgeOfPolicyHolder"`
	DaysPolicyClaim   string `json:"Days_Policy_Claim"`
}

// ApplyDefaults fills absent fields with the documented engine-level defaults.
// Every field is optional at the boundary.
func (c *Claim) ApplyDefaults() {
	if c.Month == "" {
		c.Month = "Jun"
	}
	if c.DayOfWeek == "" {
		c.DayOfWeek = "Friday"
	}
	if c.Make == "" {
		c.Make = "Honda"
	}
	if c.AccidentArea == "" {
		c.AccidentArea = "Urban"
	}
	if c.Sex == "" {
		c.Sex = "Male"
	}
	if c.MaritalStatus == "" {
		c.MaritalStatus = "Single"
	}
	if c.PolicyType == "" {
		c.PolicyType = "Sedan - Collision"
	}
	if c.VehiclePrice == "" {
		c.VehiclePrice = "20000 to 29000"
	}
	if c.AgeOfVehicle == "" {
		c.AgeOfVehicle = "5 years"
	}
	if c.AgeOfPolicyHolder == "" {
		c.AgeOfPolicyHolder = "31 to 35"
	}
	if c.DaysPolicyClaim == "" {
		c.DaysPolicyClaim = "more than 30"
	}
}

// Fingerprint returns a stable hash of the claim fields. Scoring is
// deterministic for a given model version, so the fingerprint doubles as a
// memoization key.
func (c *Claim) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		c.Month, c.DayOfWeek, c.Make, c.AccidentArea, c.Sex,
		c.MaritalStatus, c.PolicyType, c.VehiclePrice, c.AgeOfVehicle,
		c.AgeOfPolicyHolder, c.DaysPolicyClaim,
	}, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}
