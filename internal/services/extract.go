package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// PartialVehicle carries the vehicle fields collected so far across upload
// turns. Zero values mean "not provided yet".
type PartialVehicle struct {
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Year         int    `json:"year,omitempty"`
	Price        int64  `json:"price,omitempty"`
	Mileage      int    `json:"mileage,omitempty"`
	Color        string `json:"color,omitempty"`
	Transmission string `json:"transmission,omitempty"`
}

// Merge overlays newer onto p. A newer value wins only when present, so a
// later turn can correct a field but never erase one.
func (p PartialVehicle) Merge(newer PartialVehicle) PartialVehicle {
	out := p
	if newer.Make != "" {
		out.Make = newer.Make
	}
	if newer.Model != "" {
		out.Model = newer.Model
	}
	if newer.Year != 0 {
		out.Year = newer.Year
	}
	if newer.Price != 0 {
		out.Price = newer.Price
	}
	if newer.Mileage != 0 {
		out.Mileage = newer.Mileage
	}
	if newer.Color != "" {
		out.Color = newer.Color
	}
	if newer.Transmission != "" {
		out.Transmission = newer.Transmission
	}
	return out
}

// MissingMandatory lists the required fields still absent, in display order.
func (p PartialVehicle) MissingMandatory() []string {
	var missing []string
	if p.Make == "" {
		missing = append(missing, "make")
	}
	if p.Model == "" {
		missing = append(missing, "model")
	}
	if p.Year == 0 {
		missing = append(missing, "year")
	}
	if p.Price == 0 {
		missing = append(missing, "price")
	}
	return missing
}

// MandatoryComplete reports whether make, model, year and price are all set.
func (p PartialVehicle) MandatoryComplete() bool {
	return len(p.MissingMandatory()) == 0
}

// IsEmpty reports whether no field at all was extracted.
func (p PartialVehicle) IsEmpty() bool {
	return p == PartialVehicle{}
}

// VehicleExtractor turns free-form Indonesian text into structured vehicle
// fields. The production implementation calls the AI extraction service;
// callers treat it as a black box that either returns fields or fails.
type VehicleExtractor interface {
	Extract(ctx context.Context, text string) (PartialVehicle, error)
}

// HTTPExtractor calls the external AI extraction endpoint.
type HTTPExtractor struct {
	url     string
	timeout time.Duration
}

func NewHTTPExtractor(url string) *HTTPExtractor {
	return &HTTPExtractor{url: url, timeout: 5 * time.Second}
}

func (e *HTTPExtractor) Extract(ctx context.Context, text string) (PartialVehicle, error) {
	if e.url == "" {
		return PartialVehicle{}, errors.New("extractor endpoint not configured")
	}

	var rsp struct {
		Success bool           `json:"success"`
		Vehicle PartialVehicle `json:"vehicle"`
		Error   string         `json:"error"`
	}
	var code int
	err := gout.POST(e.url).
		WithContext(ctx).
		SetTimeout(e.timeout).
		SetJSON(gout.H{"text": text}).
		BindJSON(&rsp).
		Code(&code).
		Do()
	if err != nil {
		return PartialVehicle{}, fmt.Errorf("extractor request: %w", err)
	}
	if code != http.StatusOK || !rsp.Success {
		zap.L().Debug("extractor declined text", zap.Int("status", code), zap.String("error", rsp.Error))
		return PartialVehicle{}, fmt.Errorf("extractor status %d: %s", code, rsp.Error)
	}
	return rsp.Vehicle, nil
}

// RegexExtractor is the deterministic fallback used when the AI service is
// down or returns nothing. It understands local shorthand ("120jt", "50rb",
// "85.000 km") plus common makes, models, colors and transmissions.
type RegexExtractor struct{}

var (
	millionRe  = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(?:jt|juta)\b`)
	thousandRe = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(?:rb|ribu)\b`)
	kmRe       = regexp.MustCompile(`(?i)\b(\d[\d.,]*)\s*km\b`)
	yearRe     = regexp.MustCompile(`\b(19[89]\d|20\d{2})\b`)
	barePrice  = regexp.MustCompile(`\b(\d{7,12})\b`)
)

var colorWords = map[string]string{
	"hitam":   "Hitam",
	"putih":   "Putih",
	"merah":   "Merah",
	"biru":    "Biru",
	"silver":  "Silver",
	"abu":     "Abu-abu",
	"abu-abu": "Abu-abu",
	"hijau":   "Hijau",
	"kuning":  "Kuning",
	"coklat":  "Coklat",
	"emas":    "Emas",
	"gold":    "Emas",
	"oranye":  "Oranye",
	"orange":  "Oranye",
}

var transmissionWords = map[string]string{
	"manual":    "Manual",
	"mt":        "Manual",
	"matic":     "Automatic",
	"matik":     "Automatic",
	"automatic": "Automatic",
	"otomatis":  "Automatic",
	"at":        "Automatic",
	"cvt":       "CVT",
}

var makeCanonical = map[string]string{
	"toyota":     "Toyota",
	"honda":      "Honda",
	"daihatsu":   "Daihatsu",
	"suzuki":     "Suzuki",
	"mitsubishi": "Mitsubishi",
	"nissan":     "Nissan",
	"mazda":      "Mazda",
	"wuling":     "Wuling",
	"hyundai":    "Hyundai",
	"kia":        "Kia",
	"isuzu":      "Isuzu",
	"ford":       "Ford",
	"chevrolet":  "Chevrolet",
	"datsun":     "Datsun",
	"lexus":      "Lexus",
	"bmw":        "BMW",
	"audi":       "Audi",
	"vw":         "Volkswagen",
	"volkswagen": "Volkswagen",
	"mercy":      "Mercedes-Benz",
	"mercedes":   "Mercedes-Benz",
}

// modelMake lets a bare model name imply its make, e.g. "Brio" is a Honda.
var modelMake = map[string]string{
	"brio":     "Honda",
	"jazz":     "Honda",
	"civic":    "Honda",
	"accord":   "Honda",
	"crv":      "Honda",
	"hrv":      "Honda",
	"brv":      "Honda",
	"mobilio":  "Honda",
	"freed":    "Honda",
	"city":     "Honda",
	"avanza":   "Toyota",
	"veloz":    "Toyota",
	"innova":   "Toyota",
	"fortuner": "Toyota",
	"rush":     "Toyota",
	"calya":    "Toyota",
	"agya":     "Toyota",
	"yaris":    "Toyota",
	"vios":     "Toyota",
	"camry":    "Toyota",
	"alphard":  "Toyota",
	"raize":    "Toyota",
	"xenia":    "Daihatsu",
	"terios":   "Daihatsu",
	"ayla":     "Daihatsu",
	"sigra":    "Daihatsu",
	"rocky":    "Daihatsu",
	"ertiga":   "Suzuki",
	"baleno":   "Suzuki",
	"ignis":    "Suzuki",
	"karimun":  "Suzuki",
	"xpander":  "Mitsubishi",
	"pajero":   "Mitsubishi",
	"livina":   "Nissan",
	"serena":   "Nissan",
	"almaz":    "Wuling",
	"confero":  "Wuling",
	"creta":    "Hyundai",
}

func (RegexExtractor) Extract(_ context.Context, text string) (PartialVehicle, error) {
	var v PartialVehicle
	lower := strings.ToLower(text)

	if m := millionRe.FindStringSubmatch(lower); m != nil {
		if amount, err := cast.ToFloat64E(strings.ReplaceAll(m[1], ",", ".")); err == nil {
			v.Price = int64(amount * 1_000_000)
		}
	}
	if m := kmRe.FindStringSubmatch(lower); m != nil {
		cleaned := strings.NewReplacer(".", "", ",", "").Replace(m[1])
		if n, err := cast.ToIntE(cleaned); err == nil {
			v.Mileage = n
		}
	}
	if v.Mileage == 0 {
		// "50rb" without an explicit km suffix still reads as mileage;
		// prices in this market are quoted in juta.
		if m := thousandRe.FindStringSubmatch(lower); m != nil {
			if amount, err := cast.ToFloat64E(strings.ReplaceAll(m[1], ",", ".")); err == nil {
				v.Mileage = int(amount * 1_000)
			}
		}
	}
	if m := yearRe.FindStringSubmatch(lower); m != nil {
		v.Year, _ = cast.ToIntE(m[1])
	}
	if v.Price == 0 {
		if m := barePrice.FindStringSubmatch(lower); m != nil {
			if n, err := cast.ToInt64E(m[1]); err == nil && n != int64(v.Mileage) {
				v.Price = n
			}
		}
	}

	tokens := strings.Fields(lower)
	for i, raw := range tokens {
		token := strings.Trim(raw, ".,!?()[]\"'")
		if v.Color == "" {
			if color, ok := colorWords[token]; ok {
				v.Color = color
				continue
			}
		}
		if v.Transmission == "" {
			if tr, ok := transmissionWords[token]; ok {
				v.Transmission = tr
				continue
			}
		}
		if v.Make == "" {
			if mk, ok := makeCanonical[token]; ok {
				v.Make = mk
				if v.Model == "" {
					if next := nextModelToken(tokens, i+1); next != "" {
						v.Model = titleWord(next)
					}
				}
				continue
			}
		}
		if v.Model == "" {
			if mk, ok := modelMake[token]; ok {
				v.Model = titleWord(token)
				if v.Make == "" {
					v.Make = mk
				}
			}
		}
	}

	return v, nil
}

// nextModelToken returns the first following token that looks like a model
// name rather than a number, color or transmission keyword.
func nextModelToken(tokens []string, from int) string {
	for i := from; i < len(tokens); i++ {
		token := strings.Trim(tokens[i], ".,!?()[]\"'")
		if token == "" {
			continue
		}
		if _, ok := colorWords[token]; ok {
			return ""
		}
		if _, ok := transmissionWords[token]; ok {
			return ""
		}
		if token[0] >= '0' && token[0] <= '9' {
			return ""
		}
		return token
	}
	return ""
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
