package main

import (
	"fmt"
	"io"

	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/internal/domain/preference"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type weightView struct {
	Feature string  `yaml:"feature"`
	Weight  float64 `yaml:"weight"`
}

type insightsView struct {
	Decisions        int                 `yaml:"decisions"`
	Approved         int                 `yaml:"approved"`
	Refused          int                 `yaml:"refused"`
	RemotePreference float64             `yaml:"remote_preference"`
	TopKeywords      []weightView        `yaml:"top_keywords"`
	AvoidedKeywords  []weightView        `yaml:"avoided_keywords"`
	TopCompanies     []weightView        `yaml:"top_companies"`
	Categories       []weightView        `yaml:"categories"`
	Features         map[model.Group]int `yaml:"features"`
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print what the model has learned so far",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx, cmd, flags)
			if err != nil {
				return err
			}
			svc, err := startOffline(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Stop()

			in, err := svc.Insights(top)
			if err != nil {
				return err
			}
			return writeInsights(cmd.OutOrStdout(), in)
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 10, "entries per list")
	return cmd
}

func writeInsights(w io.Writer, in preference.Insights) error { //nolint:gocritic // hugeParam
	view := insightsView{
		Decisions:        in.Decisions,
		Approved:         in.Approved,
		Refused:          in.Refused,
		RemotePreference: in.RemotePreference,
		TopKeywords:      weights(in.TopKeywords),
		AvoidedKeywords:  weights(in.AvoidedKeywords),
		TopCompanies:     weights(in.TopCompanies),
		Categories:       weights(in.Categories),
		Features:         in.Features,
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}
	return enc.Close()
}

func weights(ws []model.FeatureWeight) []weightView {
	out := make([]weightView, len(ws))
	for i, w := range ws {
		out[i] = weightView{Feature: w.Feature, Weight: w.Weight}
	}
	return out
}
