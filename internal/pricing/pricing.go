// Package pricing computes the cost of a print job from its options and
// the shop's current rate table. All functions are pure; the engine calls
// them at submission time and the quoted cost is fixed on the job.
package pricing

import (
	"strconv"
	"strings"
)

type ColorMode string

const (
	ColorModeBW    ColorMode = "bw"
	ColorModeColor ColorMode = "color"
)

// RateTable holds the per-page rates and multipliers. Discount and
// surcharge are stored as multipliers (0.9 means 10% off, 1.25 means
// 25% extra), matching how operators enter them on the rates screen.
type RateTable struct {
	BWPageRate         float64 `json:"bw"`
	ColorPageRate      float64 `json:"color"`
	DuplexMultiplier   float64 `json:"discount"`
	ExpediteMultiplier float64 `json:"surcharge"`
}

func DefaultRates() RateTable {
	return RateTable{
		BWPageRate:         0.5,
		ColorPageRate:      2.0,
		DuplexMultiplier:   0.9,
		ExpediteMultiplier: 1.25,
	}
}

// Options describes what the customer asked for. PageSelection is the
// raw string from the options form: "all", a range "a-b", or a
// comma-separated list of pages.
type Options struct {
	PageSelection string    `json:"pages"`
	TotalPages    int       `json:"total_pages"`
	ColorMode     ColorMode `json:"color_mode"`
	Duplex        bool      `json:"duplex"`
	Copies        int       `json:"copies"`
	Expedited     bool      `json:"expedited"`
}

// EffectivePages resolves a page selection string against the document's
// total page count. Malformed selections intentionally fall back to the
// full document instead of erroring; the options form accepts free text
// and the shop would rather overprint than reject the order.
func EffectivePages(selection string, totalPages int) int {
	selection = strings.TrimSpace(selection)
	if selection == "" || selection == "all" {
		return totalPages
	}

	if start, end, ok := strings.Cut(selection, "-"); ok {
		a, errA := strconv.Atoi(strings.TrimSpace(start))
		b, errB := strconv.Atoi(strings.TrimSpace(end))
		if errA == nil && errB == nil && b >= a {
			return b - a + 1
		}
		return totalPages
	}

	parts := strings.Split(selection, ",")
	for _, p := range parts {
		if _, err := strconv.Atoi(strings.TrimSpace(p)); err != nil {
			return totalPages
		}
	}
	return len(parts)
}

// Price returns the full-precision cost for the given options. Rounding
// to currency precision happens at display time only.
func Price(opts Options, rates RateTable) float64 {
	pages := EffectivePages(opts.PageSelection, opts.TotalPages)
	if pages < 0 {
		pages = 0
	}

	copies := opts.Copies
	if copies < 1 {
		copies = 1
	}

	perPage := rates.BWPageRate
	if opts.ColorMode == ColorModeColor {
		perPage = rates.ColorPageRate
	}

	base := float64(pages) * perPage * float64(copies)
	if opts.Duplex {
		base *= rates.DuplexMultiplier
	}

	surcharge := 0.0
	if opts.Expedited {
		surcharge = base * (rates.ExpediteMultiplier - 1)
	}

	total := base + surcharge
	if total < 0 {
		return 0
	}
	return total
}
