/*
nanopair is a command line wrapper around the pair-HMM training containers.

The heavy lifting (the DP passes over reads) happens in library code driven
by training pipelines; this tool covers the file-side chores that come up
between iterations:

	nanopair describe -t threeState model.hmm
	nanopair normalize -t threeState model.hmm
	nanopair randomize -t vanilla -seed 42 model.hmm
	nanopair diff old.hmm new.hmm
	nanopair fingerprint -t threeState model.hmm

describe prints the header and the transition matrix of a serialized model.
normalize loads, normalizes and rewrites a model in place. randomize fills
a model with seeded random probabilities, for cold starts. diff prints a
unified diff of two serialized models. fingerprint prints the blake3 hash
of a model's canonical serialization.
*/
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/bebop/nanopair/hmm"
	"github.com/bebop/nanopair/kmer"
	"github.com/bebop/nanopair/statemachine"
	"github.com/lunny/log"
	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slices"
)

var modelTypes = map[string]statemachine.Type{
	"fiveState":            statemachine.FiveState,
	"fiveStateAsymmetric":  statemachine.FiveStateAsymmetric,
	"threeState":           statemachine.ThreeState,
	"threeStateAsymmetric": statemachine.ThreeStateAsymmetric,
	"threeStateHdp":        statemachine.ThreeStateHDP,
	"vanilla":              statemachine.Vanilla,
}

func parseModelType(c *cli.Context) (statemachine.Type, error) {
	name := c.String("type")
	typ, ok := modelTypes[name]
	if !ok {
		names := make([]string, 0, len(modelTypes))
		for known := range modelTypes {
			names = append(names, known)
		}
		sort.Strings(names)
		return 0, fmt.Errorf("unknown model type %q, expected one of %v", name, names)
	}
	return typ, nil
}

func typeFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "type",
		Aliases:  []string{"t"},
		Usage:    "model type tag of the file(s)",
		Required: true,
	}
}

func describe(c *cli.Context) error {
	typ, err := parseModelType(c)
	if err != nil {
		return err
	}
	model, err := hmm.ReadFile(c.Args().First(), typ)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "type: %s  states: %d  symbols: %d  likelihood: %f\n",
		model.Type(), model.StateNumber(), model.SymbolSetSize(), model.Likelihood())

	source, ok := model.(hmm.TransitionSource)
	if !ok {
		return nil
	}
	stateNames := []string{"match", "shortGapX", "shortGapY", "longGapX", "longGapY"}
	table := tablewriter.NewWriter(c.App.Writer)
	table.SetHeader(append([]string{"from \\ to"}, stateNames[:model.StateNumber()]...))
	for from := 0; from < model.StateNumber(); from++ {
		row := []string{stateNames[from]}
		for to := 0; to < model.StateNumber(); to++ {
			row = append(row, fmt.Sprintf("%.6f",
				source.Transition(statemachine.State(from), statemachine.State(to))))
		}
		table.Append(row)
	}
	table.Render()

	if pair, ok := model.(*hmm.ContinuousPair); ok {
		printTopGapProbs(c, pair)
	}
	return nil
}

// printTopGapProbs lists the k-mers the model considers most skippable.
func printTopGapProbs(c *cli.Context, pair *hmm.ContinuousPair) {
	type gapProb struct {
		kmerString  string
		probability float64
	}
	probs := make([]gapProb, 0, pair.SymbolSetSize())
	for index := 0; index < pair.SymbolSetSize(); index++ {
		probs = append(probs, gapProb{kmer.FromIndex(index), pair.Emission(0, index, 0)})
	}
	slices.SortFunc(probs, func(a, b gapProb) bool { return a.probability > b.probability })
	fmt.Fprintln(c.App.Writer, "most skippable k-mers:")
	for _, p := range probs[:10] {
		fmt.Fprintf(c.App.Writer, "  %s\t%f\n", p.kmerString, p.probability)
	}
}

func normalize(c *cli.Context) error {
	typ, err := parseModelType(c)
	if err != nil {
		return err
	}
	path := c.Args().First()
	model, err := hmm.ReadFile(path, typ)
	if err != nil {
		return err
	}
	model.Normalize()
	if err := hmm.WriteFile(path, model); err != nil {
		return err
	}
	log.Infof("normalized %s", path)
	return nil
}

func randomize(c *cli.Context) error {
	typ, err := parseModelType(c)
	if err != nil {
		return err
	}
	path := c.Args().First()
	model, err := hmm.NewEmpty(typ, 0.0)
	if err != nil {
		return err
	}
	model.Randomize(rand.New(rand.NewSource(c.Int64("seed"))))
	if err := hmm.WriteFile(path, model); err != nil {
		return err
	}
	log.Infof("wrote randomized %s model to %s", typ, path)
	return nil
}

func diffModels(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("diff needs exactly two model files")
	}
	before, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return err
	}
	after, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return err
	}
	unified := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: c.Args().Get(0),
		ToFile:   c.Args().Get(1),
		Context:  1,
	}
	text, err := difflib.GetUnifiedDiffString(unified)
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, text)
	return nil
}

func fingerprint(c *cli.Context) error {
	typ, err := parseModelType(c)
	if err != nil {
		return err
	}
	model, err := hmm.ReadFile(c.Args().First(), typ)
	if err != nil {
		return err
	}
	sum, err := hmm.Fingerprint(model)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, sum)
	return nil
}

func application() *cli.App {
	return &cli.App{
		Name:  "nanopair",
		Usage: "inspect and maintain pair-HMM training files",
		Commands: []*cli.Command{
			{
				Name:      "describe",
				Usage:     "print the header and transition matrix of a model",
				Flags:     []cli.Flag{typeFlag()},
				ArgsUsage: "model.hmm",
				Action:    describe,
			},
			{
				Name:      "normalize",
				Usage:     "normalize a model's expectations in place",
				Flags:     []cli.Flag{typeFlag()},
				ArgsUsage: "model.hmm",
				Action:    normalize,
			},
			{
				Name:  "randomize",
				Usage: "write a randomized model, for cold starts",
				Flags: []cli.Flag{
					typeFlag(),
					&cli.Int64Flag{Name: "seed", Value: 1, Usage: "random seed"},
				},
				ArgsUsage: "model.hmm",
				Action:    randomize,
			},
			{
				Name:      "diff",
				Usage:     "unified diff of two serialized models",
				ArgsUsage: "old.hmm new.hmm",
				Action:    diffModels,
			},
			{
				Name:      "fingerprint",
				Usage:     "blake3 fingerprint of a model",
				Flags:     []cli.Flag{typeFlag()},
				ArgsUsage: "model.hmm",
				Action:    fingerprint,
			},
		},
	}
}

func main() {
	if err := application().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
