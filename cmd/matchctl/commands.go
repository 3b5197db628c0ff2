package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pathfinder-workers/internal/common/config"
	"pathfinder-workers/internal/common/database"
	"pathfinder-workers/internal/common/validation"
	"pathfinder-workers/internal/matching/interest"
	"pathfinder-workers/internal/matching/retrieval"
	"pathfinder-workers/internal/matching/triage"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
	"pathfinder-workers/pkg/registry"

	gocc "pathfinder-workers/internal/workers/discovery/get-occupation"
	qp "pathfinder-workers/internal/workers/discovery/query-programs"
)

func sqliteConfig(path string) config.SQLiteConfig {
	return config.SQLiteConfig{Path: path}
}

// ==========================
// score
// ==========================

type scoreOutput struct {
	RiasecScores    models.InterestScores `json:"riasecScores"`
	TopCodes        []models.InterestCode `json:"topCodes"`
	RiasecCode      string                `json:"riasecCode"`
	Confidence      float64               `json:"confidence"`
	ConfidenceLevel string                `json:"confidenceLevel"`
}

func newScoreCmd(_ *options) *cobra.Command {
	var responsesPath string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score questionnaire responses (JSON object of question id to answer)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd.InOrStdin(), responsesPath)
			if err != nil {
				return err
			}
			var responses map[string]string
			if err := json.Unmarshal(raw, &responses); err != nil {
				return fmt.Errorf("parse responses: %w", err)
			}

			res, err := interest.Score(responses)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), scoreOutput{
				RiasecScores:    res.Scores.Rounded(),
				TopCodes:        res.TopCodes,
				RiasecCode:      models.JoinCodes(res.TopCodes),
				Confidence:      math.Round(res.Confidence*1000) / 1000,
				ConfidenceLevel: res.ConfidenceLevel,
			})
		},
	}
	cmd.Flags().StringVarP(&responsesPath, "responses", "r", "-", "responses file, - for stdin")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// ==========================
// triage
// ==========================

type triageOutput struct {
	PoolStage        string               `json:"poolStage"`
	OccupationPool   []string             `json:"occupationPool"`
	FilteredSkillIDs []string             `json:"filteredSkillIds"`
	Skills           []models.TriageSkill `json:"skills"`
}

func newTriageCmd(opts *options) *cobra.Command {
	var codes string

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Select the occupation pool and skill panel for a three-letter interest code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topCodes, err := parseCodes(codes)
			if err != nil {
				return err
			}

			log := opts.logger()
			store, closeStore, err := opts.loadStore(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer closeStore()

			snap, err := store.Current()
			if err != nil {
				return err
			}
			res, err := triage.NewFilter(triage.DefaultConfig()).Run(snap, topCodes)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), triageOutput{
				PoolStage:        res.Stage,
				OccupationPool:   res.OccupationPool,
				FilteredSkillIDs: res.FilteredSkillIDs,
				Skills:           res.Skills,
			})
		},
	}
	cmd.Flags().StringVar(&codes, "codes", "", "three-letter interest code, e.g. RIA")
	_ = cmd.MarkFlagRequired("codes")
	return cmd
}

func parseCodes(s string) ([]models.InterestCode, error) {
	codes, err := models.ParseInterestCodes(s)
	if err != nil {
		return nil, err
	}
	if err := triage.ValidateTopCodes(codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// ==========================
// search
// ==========================

func newSearchCmd(opts *options) *cobra.Command {
	var (
		occupationCode string
		entityType     string
		maxDuration    float64
		locations      []string
		degreeTypes    []string
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a free-text or occupation-anchored retrieval over the corpus",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if occupationCode == "" && len(args) == 0 {
				return fmt.Errorf("a query or --occupation is required")
			}

			log := opts.logger()
			store, closeStore, err := opts.loadStore(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer closeStore()

			cfg := retrieval.DefaultConfig()
			cfg.Timeout = 5 * time.Second
			if limit > 0 {
				cfg.Limit = limit
			}
			engine := retrieval.NewEngine(cfg, opts.embedder(), retrieval.NewMemoryIndex(), nil,
				retrieval.AssociationRelevance{Default: 0.5}, log)

			var maxDur *float64
			if cmd.Flags().Changed("max-duration") {
				maxDur = &maxDuration
			}

			if occupationCode != "" {
				snap, err := store.Current()
				if err != nil {
					return err
				}
				resp, err := engine.SearchOccupation(cmd.Context(), snap, occupationCode, retrieval.Filters{
					MaxDuration: maxDur,
					Locations:   locations,
					DegreeTypes: degreeTypes,
					EntityType:  models.EntityProgram,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			}

			h := qp.NewHandler(&qp.Config{Timeout: cfg.Timeout}, store, engine, nil, nil, log)
			out, err := h.Execute(cmd.Context(), &qp.Input{
				Query:      args[0],
				EntityType: entityType,
				Filters: qp.Filters{
					MaxDuration: maxDur,
					Location:    locations,
					DegreeType:  degreeTypes,
				},
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&occupationCode, "occupation", "", "anchor the search on an O*NET code instead of a query")
	f.StringVar(&entityType, "entity-type", "", "program, occupation or sector")
	f.Float64Var(&maxDuration, "max-duration", 0, "maximum program duration in years")
	f.StringSliceVar(&locations, "location", nil, "allowed locations")
	f.StringSliceVar(&degreeTypes, "degree-type", nil, "allowed degree types")
	f.IntVar(&limit, "limit", 0, "maximum results")
	return cmd
}

// ==========================
// occupation
// ==========================

func newOccupationCmd(opts *options) *cobra.Command {
	var topSkills int

	cmd := &cobra.Command{
		Use:   "occupation <onet-code>",
		Short: "Show an occupation with its top skills and linked programs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.logger()
			store, closeStore, err := opts.loadStore(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer closeStore()

			h := gocc.NewHandler(&gocc.Config{Timeout: 5 * time.Second, TopSkills: topSkills}, store, nil, nil, log)
			out, err := h.Execute(cmd.Context(), &gocc.Input{OnetCode: args[0]})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&topSkills, "top-skills", 10, "number of skills to show")
	return cmd
}

// ==========================
// import
// ==========================

func newImportCmd(opts *options) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the YAML reference data into a SQLite database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := reference.NewFileLoader(opts.dataPath).Load(cmd.Context())
			if err != nil {
				return err
			}
			// reject data the service would refuse to load
			if _, err := reference.NewSnapshot(data, 0, "import"); err != nil {
				return err
			}

			lite, err := database.NewSQLite(sqliteConfig(target))
			if err != nil {
				return err
			}
			defer lite.Close()

			if err := reference.WriteSQLite(cmd.Context(), lite.DB, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d occupations, %d skills, %d programs, %d chunks into %s\n",
				len(data.Occupations), len(data.Skills), len(data.Programs), len(data.Chunks), target)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "to", "data/reference.db", "SQLite database to create")
	return cmd
}

// ==========================
// registry
// ==========================

func newRegistryCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the activity registry",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "registry file; defaults to the embedded registry")

	load := func() (*registry.ActivityRegistry, error) {
		if path == "" {
			return registry.Default()
		}
		return registry.LoadRegistry(path)
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check registry structure and compile every schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Validate(); err != nil {
				return err
			}
			if _, err := validation.NewValidator(reg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered task types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			for _, tt := range reg.TaskTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), tt)
			}
			return nil
		},
	}

	cmd.AddCommand(validate, list)
	return cmd
}
