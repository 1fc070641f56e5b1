package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"homeops/backend/internal/config"
	"homeops/backend/internal/logging"
	"homeops/backend/internal/repository"
	"homeops/backend/pkg/models"
)

func main() {
	ctx := context.Background()

	configFile := flag.String("config", "", "Path to config file")
	chainFile := flag.String("file", "", "Path to a YAML file with chains to seed")
	flag.Parse()

	// Load config
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Connect to DB
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool, logger)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	// 1. Collect chains to seed
	seedChains := sampleChains()
	if *chainFile != "" {
		extra, err := loadChainFile(*chainFile)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", *chainFile, err)
		}
		seedChains = append(seedChains, extra...)
	}

	// 2. Check for existing chains to prevent duplicates
	existing, err := store.ListChains(ctx)
	if err != nil {
		log.Fatalf("Failed to list existing chains: %v", err)
	}

	existingMap := make(map[string]bool)
	for _, c := range existing {
		existingMap[c.Name] = true
	}

	// 3. Create missing chains
	for _, chain := range seedChains {
		if existingMap[chain.Name] {
			logger.Infow("Skipping existing chain", "name", chain.Name)
			continue
		}

		if err := store.CreateChain(ctx, chain); err != nil {
			log.Printf("Failed to create chain %s: %v", chain.Name, err)
		} else {
			logger.Infow("Seeded chain", "name", chain.Name, "id", chain.ID)
		}
	}
	logger.Info("Seeding complete!")
}

// sampleChains returns the chains shipped with a fresh install. They only
// reference tools from the bundled integrations.
func sampleChains() []*models.Chain {
	return []*models.Chain{
		{
			Name:        "Media request follow-up",
			Description: "After a request is placed, watch it move through the download queue.",
			Color:       "#6366f1",
			Priority:    10,
			Enabled:     true,
			Steps: []models.ChainStep{
				{
					StepOrder:     0,
					SourceService: "overseerr",
					SourceTool:    "request_media",
					Condition:     models.ConditionSpec{Operator: models.OperatorSuccess},
					Comment:       "a fresh request usually starts downloading right away",
					Enabled:       true,
					Targets: []models.StepTarget{
						{TargetService: "sabnzbd", TargetTool: "get_queue", Enabled: true, Comment: "check the download queue"},
					},
				},
				{
					StepOrder:     1,
					SourceService: "sabnzbd",
					SourceTool:    "get_queue",
					Condition:     models.ConditionSpec{Operator: models.OperatorEquals, Field: "paused", Value: "true"},
					Comment:       "nothing moves while the queue is paused",
					Enabled:       true,
					Targets: []models.StepTarget{
						{TargetService: "sabnzbd", TargetTool: "resume_queue", Enabled: true, Comment: "resume downloads"},
					},
				},
			},
		},
		{
			Name:        "Already in the library?",
			Description: "Cross-check Overseerr search hits against what Jellyfin already has.",
			Color:       "#22c55e",
			Priority:    5,
			Enabled:     true,
			Steps: []models.ChainStep{
				{
					StepOrder:     0,
					SourceService: "overseerr",
					SourceTool:    "search_media",
					Condition:     models.ConditionSpec{Operator: models.OperatorSuccess},
					Enabled:       true,
					Targets: []models.StepTarget{
						{
							TargetService: "jellyfin",
							TargetTool:    "search_library",
							ArgumentMappings: map[string]any{
								"query": map[string]any{"input": "query"},
								"limit": map[string]any{"value": 5},
							},
							Enabled: true,
							Comment: "reuse the same search terms against the library",
						},
					},
				},
			},
		},
		{
			Name:        "Library refresh on empty queue",
			Description: "When the download queue drains, pick up the new files.",
			Color:       "#f59e0b",
			Priority:    5,
			Enabled:     true,
			Steps: []models.ChainStep{
				{
					StepOrder:     0,
					SourceService: "sabnzbd",
					SourceTool:    "get_queue",
					Condition:     models.ConditionSpec{Operator: models.OperatorIsEmpty, Field: "slots"},
					Comment:       "an empty queue means recent downloads have finished",
					Enabled:       true,
					Targets: []models.StepTarget{
						{TargetService: "jellyfin", TargetTool: "refresh_library", Enabled: true, Comment: "scan for the new files"},
					},
				},
			},
		},
	}
}

// The seed file is flatter than the wire format: conditions live on the step
// and ordering comes from position in the list.
type seedFile struct {
	Chains []seedChain `yaml:"chains"`
}

type seedChain struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Color       string     `yaml:"color"`
	Priority    int        `yaml:"priority"`
	Steps       []seedStep `yaml:"steps"`
}

type seedStep struct {
	Service  string       `yaml:"service"`
	Tool     string       `yaml:"tool"`
	Operator string       `yaml:"operator"`
	Field    string       `yaml:"field"`
	Value    string       `yaml:"value"`
	Comment  string       `yaml:"comment"`
	Targets  []seedTarget `yaml:"targets"`
}

type seedTarget struct {
	Service string         `yaml:"service"`
	Tool    string         `yaml:"tool"`
	Mode    string         `yaml:"mode"`
	Args    map[string]any `yaml:"args"`
	Comment string         `yaml:"comment"`
}

func loadChainFile(path string) ([]*models.Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	out := make([]*models.Chain, 0, len(file.Chains))
	for _, sc := range file.Chains {
		chain := &models.Chain{
			Name:        sc.Name,
			Description: sc.Description,
			Color:       sc.Color,
			Priority:    sc.Priority,
			Enabled:     true,
		}
		for i, ss := range sc.Steps {
			step := models.ChainStep{
				StepOrder:     i,
				SourceService: ss.Service,
				SourceTool:    ss.Tool,
				Condition: models.ConditionSpec{
					Operator: models.Operator(ss.Operator),
					Field:    ss.Field,
					Value:    ss.Value,
				},
				Comment: ss.Comment,
				Enabled: true,
			}
			for j, st := range ss.Targets {
				step.Targets = append(step.Targets, models.StepTarget{
					TargetService:    st.Service,
					TargetTool:       st.Tool,
					TargetOrder:      j,
					ExecutionMode:    models.ExecutionMode(st.Mode),
					ArgumentMappings: st.Args,
					Comment:          st.Comment,
					Enabled:          true,
				})
			}
			chain.Steps = append(chain.Steps, step)
		}
		out = append(out, chain)
	}
	return out, nil
}
