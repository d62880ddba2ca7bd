package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/tier"
)

// pickTiers lets the user choose tiers from a fuzzy finder. Aborting the
// finder selects nothing. Picked tiers run even when the profile ships
// them disabled.
func pickTiers(tiers []tier.Tier) ([]tier.Tier, error) {
	if len(tiers) == 0 {
		return nil, nil
	}

	idxs, err := fuzzyfinder.FindMulti(
		tiers,
		func(i int) string {
			label := tiers[i].Name
			if !tiers[i].Enabled {
				label += " (disabled)"
			}
			return fmt.Sprintf("%s - %d steps", label, len(tiers[i].Steps))
		},
		fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			return previewTier(tiers[i])
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "selecting tiers")
	}

	// Finder order is selection order; sessions run in profile order.
	slices.Sort(idxs)

	selected := make([]tier.Tier, 0, len(idxs))
	for _, i := range idxs {
		t := tiers[i]
		t.Enabled = true
		selected = append(selected, t)
	}
	return selected, nil
}

func previewTier(t tier.Tier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tier: %s\n", t.Name)
	if !t.Enabled {
		b.WriteString("Disabled by the profile; selecting it runs it anyway.\n")
	}
	b.WriteString("\nSteps:\n")
	for _, s := range t.Steps {
		fmt.Fprintf(&b, "  %s\n", s.Label())
		if s.GuardExpr != "" {
			fmt.Fprintf(&b, "    guard: %s\n", s.GuardExpr)
		}
		if s.Fatal {
			b.WriteString("    fatal on failure\n")
		}
	}
	return b.String()
}
